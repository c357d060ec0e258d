package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"shophub/internal/apperr"
	"shophub/internal/models"
	"shophub/internal/stock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errStatusChanged means a concurrent writer moved the order between our read and our write.
var errStatusChanged = errors.New("order status changed concurrently")

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// Create persists the order, its shipping address and its items in one transaction.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ShippingAddress == nil {
		return fmt.Errorf("%w: order has no shipping address", apperr.ErrValidation)
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		addr := order.ShippingAddress
		if addr.ID == "" {
			addr.ID = uuid.New().String()
		}
		if err := tx.Create(addr).Error; err != nil {
			return fmt.Errorf("store shipping address: %w", err)
		}
		order.ShippingAddressID = addr.ID

		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return fmt.Errorf("store order: %w", err)
		}

		for i := range order.Items {
			if order.Items[i].ID == "" {
				order.Items[i].ID = uuid.New().String()
			}
			order.Items[i].OrderID = order.ID
		}
		if len(order.Items) > 0 {
			if err := tx.Create(&order.Items).Error; err != nil {
				return fmt.Errorf("store order items: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves an order with its items and shipping address.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

// GetByGatewayOrderID retrieves an order by the payment provider's order id.
func (r *GORMOrderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx), "gateway_order_id = ?", gatewayOrderID)
}

// List returns one page of orders, most recently updated first, and the total order count.
func (r *GORMOrderRepository) List(ctx context.Context, page, size int) ([]models.Order, int64, error) {
	var (
		orders []models.Order
		total  int64
	)
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Order{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	err := db.Preload("Items").Preload("ShippingAddress").
		Order("updated_at desc").
		Offset((page - 1) * size).Limit(size).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// ListByUser returns every order placed by a user, newest first.
func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Preload("Items").Preload("ShippingAddress").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders of user %s: %w", userID, err)
	}
	return orders, nil
}

// SetDeliveryStatus writes a non terminal delivery status. DELIVERED orders cannot move back.
func (r *GORMOrderRepository) SetDeliveryStatus(ctx context.Context, id string, status models.DeliveryStatus) (*models.Order, error) {
	if status == models.DeliveryDelivered {
		return nil, fmt.Errorf("%w: use MarkDelivered for %s", apperr.ErrInvalidOperation, status)
	}
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Order{}).
		Where("id = ? AND delivery_status <> ?", id, models.DeliveryDelivered).
		Updates(map[string]interface{}{
			"delivery_status": status,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update delivery status of order %s: %w", id, res.Error)
	}
	order, err := r.first(db, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && order.DeliveryStatus == models.DeliveryDelivered {
		return nil, fmt.Errorf("%w: order %s is already delivered", apperr.ErrInvalidOperation, id)
	}
	return order, nil
}

// MarkDelivered compares and swaps delivery_status to DELIVERED, decrements the stock of every
// item and completes COD orders, all in one transaction. A repeated call is a no-op.
func (r *GORMOrderRepository) MarkDelivered(ctx context.Context, id string) (*models.Order, bool, error) {
	var (
		order        *models.Order
		transitioned bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = r.first(tx, "id = ?", id)
		if err != nil {
			return err
		}
		if order.DeliveryStatus == models.DeliveryDelivered {
			return nil
		}
		if order.Status == models.OrderCancelled {
			return fmt.Errorf("%w: order %s is cancelled", apperr.ErrInvalidOperation, id)
		}
		if order.PaymentMethod == models.PaymentOnline && order.Status != models.OrderCompleted {
			return fmt.Errorf("%w: online order %s is not paid", apperr.ErrInvalidOperation, id)
		}

		updates := map[string]interface{}{
			"delivery_status": models.DeliveryDelivered,
			"updated_at":      time.Now(),
		}
		if order.PaymentMethod == models.PaymentCOD {
			updates["status"] = models.OrderCompleted
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND delivery_status = ? AND status = ?", id, order.DeliveryStatus, order.Status).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to mark order %s delivered: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return errStatusChanged
		}

		if err := decrementStock(tx, order.Items); err != nil {
			return err
		}

		order.DeliveryStatus = models.DeliveryDelivered
		if order.PaymentMethod == models.PaymentCOD {
			order.Status = models.OrderCompleted
		}
		transitioned = true
		return nil
	})

	switch {
	case errors.Is(err, errStatusChanged):
		// Another request won the swap. If it delivered the order we converge on its result.
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		if current.DeliveryStatus == models.DeliveryDelivered {
			return current, false, nil
		}
		return nil, false, fmt.Errorf("%w: order %s changed while being delivered", apperr.ErrConflict, id)
	case err != nil:
		return nil, false, err
	}
	return order, transitioned, nil
}

// MarkPaid sets COMPLETED and records the payment id unless the order is already COMPLETED.
// A CANCELLED order is superseded by a verified payment.
func (r *GORMOrderRepository) MarkPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*models.Order, bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Order{}).
		Where("gateway_order_id = ? AND status <> ?", gatewayOrderID, models.OrderCompleted).
		Updates(map[string]interface{}{
			"status":             models.OrderCompleted,
			"gateway_payment_id": gatewayPaymentID,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to mark order %s paid: %w", gatewayOrderID, res.Error)
	}
	order, err := r.first(db, "gateway_order_id = ?", gatewayOrderID)
	if err != nil {
		return nil, false, err
	}
	return order, res.RowsAffected > 0, nil
}

// MarkCancelled cancels a PENDING order. COMPLETED is terminal and is left untouched.
func (r *GORMOrderRepository) MarkCancelled(ctx context.Context, gatewayOrderID string) (*models.Order, bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Order{}).
		Where("gateway_order_id = ? AND status = ?", gatewayOrderID, models.OrderPending).
		Updates(map[string]interface{}{
			"status":     models.OrderCancelled,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to cancel order %s: %w", gatewayOrderID, res.Error)
	}
	order, err := r.first(db, "gateway_order_id = ?", gatewayOrderID)
	if err != nil {
		return nil, false, err
	}
	return order, res.RowsAffected > 0, nil
}

// DeleteUnpaid removes an unpaid ONLINE order with its items and shipping address.
func (r *GORMOrderRepository) DeleteUnpaid(ctx context.Context, id string) (*models.Order, error) {
	return r.deleteUnpaid(ctx, "id = ?", id)
}

// DeleteUnpaidByGatewayOrderID is DeleteUnpaid keyed by the provider's order id.
func (r *GORMOrderRepository) DeleteUnpaidByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return r.deleteUnpaid(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (r *GORMOrderRepository) deleteUnpaid(ctx context.Context, query string, arg string) (*models.Order, error) {
	var order *models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = r.first(tx, query, arg)
		if err != nil {
			return err
		}
		if order.PaymentMethod != models.PaymentOnline {
			return fmt.Errorf("%w: order %s is not an online order", apperr.ErrInvalidOperation, order.ID)
		}
		if order.IsPaid() {
			return fmt.Errorf("%w: order %s is already paid", apperr.ErrInvalidOperation, order.ID)
		}

		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		res := tx.Where("id = ? AND status <> ?", order.ID, models.OrderCompleted).Delete(&models.Order{})
		if res.Error != nil {
			return fmt.Errorf("delete order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// paid between our read and our delete; roll the item deletion back
			return fmt.Errorf("%w: order %s is already paid", apperr.ErrInvalidOperation, order.ID)
		}
		if err := tx.Delete(&models.ShippingAddress{}, "id = ?", order.ShippingAddressID).Error; err != nil {
			return fmt.Errorf("delete shipping address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Stats computes the admin dashboard figures.
func (r *GORMOrderRepository) Stats(ctx context.Context) (*models.DashboardStats, error) {
	db := r.db.WithContext(ctx)
	stats := &models.DashboardStats{TotalIncome: decimal.Zero}

	if err := db.Model(&models.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if err := db.Model(&models.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	var income decimal.NullDecimal
	row := db.Model(&models.Order{}).Where("status = ?", models.OrderCompleted).Select("SUM(total_amount)").Row()
	if err := row.Scan(&income); err != nil {
		return nil, fmt.Errorf("sum income: %w", err)
	}
	if income.Valid {
		stats.TotalIncome = income.Decimal
	}

	if err := db.Model(&models.Order{}).
		Select("payment_method AS method, COUNT(*) AS count").
		Group("payment_method").
		Order("payment_method").
		Scan(&stats.PaymentMethods).Error; err != nil {
		return nil, fmt.Errorf("group payment methods: %w", err)
	}

	if err := db.Model(&models.Order{}).
		Where("delivery_status <> ? AND status <> ?", models.DeliveryDelivered, models.OrderCancelled).
		Count(&stats.PendingDeliveries).Error; err != nil {
		return nil, fmt.Errorf("count pending deliveries: %w", err)
	}
	return stats, nil
}

func (r *GORMOrderRepository) first(db *gorm.DB, query string, arg string) (*models.Order, error) {
	var order models.Order
	err := db.Preload("Items").Preload("ShippingAddress").First(&order, query, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, arg)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", arg, err)
	}
	return &order, nil
}

// decrementStock validates the items against current stock, then applies one guarded
// decrement per product. Any failure aborts the surrounding transaction.
func decrementStock(tx *gorm.DB, items []models.OrderItem) error {
	lines := make([]stock.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, stock.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	totals := stock.Totals(lines)
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	// fixed order keeps concurrent deliveries from deadlocking on product rows
	sort.Strings(ids)

	var products []models.Product
	if err := tx.Unscoped().Where("id IN ?", ids).Find(&products).Error; err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	levels := make(map[string]int, len(products))
	for _, p := range products {
		levels[p.ID] = p.Stock
	}
	if _, err := stock.Apply(lines, levels); err != nil {
		return err
	}

	for _, id := range ids {
		qty := totals[id]
		res := tx.Unscoped().Model(&models.Product{}).
			Where("id = ? AND stock >= ?", id, qty).
			Updates(map[string]interface{}{
				"stock":      gorm.Expr("stock - ?", qty),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("decrement stock of product %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: product %s", apperr.ErrInsufficientStock, id)
		}
	}
	return nil
}
