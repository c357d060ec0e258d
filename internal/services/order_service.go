package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"shophub/internal/apperr"
	"shophub/internal/config"
	"shophub/internal/models"
	"shophub/internal/payment"
	"shophub/internal/repositories"
	"shophub/pkg/rabbitmq"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItemRequest is one requested line. Any client supplied price is ignored.
type OrderItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	UserID        string               `json:"userId"`
	Items         []OrderItemRequest   `json:"items" validate:"required,min=1,dive"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod" validate:"required,oneof=ONLINE COD"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	userRepo    repositories.UserRepository
	gateway     payment.Gateway
	events      EventPublisher
	payment     config.Payment
}

// NewOrderService creates a new OrderService. events may be nil.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	userRepo repositories.UserRepository,
	gateway payment.Gateway,
	events EventPublisher,
	cfg config.Payment,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		gateway:     gateway,
		events:      events,
		payment:     cfg,
	}
}

// CreateOrder prices the requested items from the catalog, opens a gateway intent for ONLINE
// orders and persists the order with its items and a copy of the user's address.
func (s *OrderService) CreateOrder(ctx context.Context, caller Caller, req CreateOrderRequest) (*models.Order, error) {
	userID := req.UserID
	if userID == "" {
		userID = caller.UserID
	}
	if !caller.CanAccess(userID) {
		return nil, fmt.Errorf("%w: cannot place an order for another user", apperr.ErrForbidden)
	}
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", apperr.ErrValidation, req.PaymentMethod)
	}
	lines, err := mergeLines(req.Items)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasAddress() {
		return nil, fmt.Errorf("%w: user %s has no delivery address", apperr.ErrValidation, user.ID)
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	order := &models.Order{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		PaymentMethod:  req.PaymentMethod,
		Status:         models.OrderPending,
		DeliveryStatus: models.DeliveryPending,
		Currency:       s.payment.Currency,
		ShippingAddress: &models.ShippingAddress{
			Name:        user.Name,
			Street:      user.Street,
			City:        user.City,
			State:       user.State,
			PostalCode:  user.PostalCode,
			Country:     user.Country,
			PhoneNumber: user.PhoneNumber,
		},
	}
	for _, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok || !p.IsPublished {
			return nil, fmt.Errorf("%w: product %s is not available", apperr.ErrInvalidProductSet, line.ProductID)
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: p.ID,
			Quantity:  line.Quantity,
			Price:     p.EffectivePrice(),
		})
	}
	order.TotalAmount = order.ItemsTotal()

	if order.PaymentMethod == models.PaymentOnline {
		if !order.TotalAmount.IsPositive() {
			return nil, fmt.Errorf("%w: online payment needs a positive total", apperr.ErrValidation)
		}
		intent, err := s.openIntent(ctx, order.TotalAmount)
		if err != nil {
			log.Printf("Failed to open payment intent for user %s: %v", user.ID, err)
			return nil, err
		}
		order.GatewayOrderID = &intent.ID
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}
	log.Printf("Created %s order %s for user %s, total %s %s", order.PaymentMethod, order.ID, order.UserID, order.TotalAmount.StringFixed(2), order.Currency)

	publishOrderEvent(s.events, rabbitmq.OrderCreated, order)
	return order, nil
}

func (s *OrderService) openIntent(ctx context.Context, amount decimal.Decimal) (*payment.Intent, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: no payment gateway configured", apperr.ErrGatewayUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, s.payment.Timeout)
	defer cancel()

	intent, err := s.gateway.OpenIntent(ctx, payment.IntentRequest{
		Amount:   amount,
		Currency: s.payment.Currency,
		Receipt:  newReceipt(),
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %v", apperr.ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	return intent, nil
}

// newReceipt returns a fresh idempotency key that fits the provider's 40 character limit.
func newReceipt() string {
	return "rcpt_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// mergeLines validates the requested items and sums repeated products into one line.
func mergeLines(items []OrderItemRequest) ([]OrderItemRequest, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", apperr.ErrValidation)
	}
	merged := make([]OrderItemRequest, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			return nil, fmt.Errorf("%w: item without productId", apperr.ErrValidation)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity of product %s must be positive", apperr.ErrValidation, item.ProductID)
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// UpdateDeliveryStatus moves an order along its delivery track. DELIVERED decrements stock
// and completes COD orders in the same transaction; repeating it changes nothing.
func (s *OrderService) UpdateDeliveryStatus(ctx context.Context, id string, status models.DeliveryStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid delivery status %q", apperr.ErrValidation, status)
	}

	if status != models.DeliveryDelivered {
		order, err := s.orderRepo.SetDeliveryStatus(ctx, id, status)
		if err != nil {
			return nil, err
		}
		log.Printf("Order %s delivery status set to %s", id, status)
		return order, nil
	}

	order, transitioned, err := s.orderRepo.MarkDelivered(ctx, id)
	if err != nil {
		return nil, err
	}
	if transitioned {
		log.Printf("Order %s delivered, stock adjusted", id)
		publishOrderEvent(s.events, rabbitmq.OrderDelivered, order)
	}
	return order, nil
}

// GetOrders returns one page of all orders, most recently updated first.
func (s *OrderService) GetOrders(ctx context.Context, page, size int) ([]models.Order, Page, error) {
	page, size = pageBounds(page, size)
	orders, total, err := s.orderRepo.List(ctx, page, size)
	if err != nil {
		return nil, Page{}, err
	}
	return orders, newPage(page, size, total), nil
}

// GetOrderByID retrieves a single order the caller may see.
func (s *OrderService) GetOrderByID(ctx context.Context, caller Caller, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(order.UserID) {
		// do not reveal that someone else's order exists
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
	}
	return order, nil
}

// ListUserOrders returns every order of the caller.
func (s *OrderService) ListUserOrders(ctx context.Context, caller Caller) ([]models.Order, error) {
	return s.orderRepo.ListByUser(ctx, caller.UserID)
}

// Dashboard returns catalog and order figures for administrators.
func (s *OrderService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	return s.orderRepo.Stats(ctx)
}
