package handlers

import (
	"log"

	"shophub/internal/middleware"
	"shophub/internal/models"
	"shophub/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterStoreRoutes registers the customer facing order routes.
func (h *OrderHandler) RegisterStoreRoutes(store fiber.Router, requireAuth fiber.Handler) {
	store.Post("/order/payment", requireAuth, h.HandleCreateOrder)
	store.Get("/orders", requireAuth, h.HandleListMyOrders)
	store.Get("/order/:id", requireAuth, h.HandleGetOrderByID)
}

// RegisterAdminRoutes registers the order management routes. The router must already
// enforce admin access.
func (h *OrderHandler) RegisterAdminRoutes(admin fiber.Router) {
	admin.Get("/orders", h.HandleGetOrders)
	admin.Put("/order/update/:id", h.HandleUpdateDeliveryStatus)
	admin.Get("/dashboard", h.HandleDashboard)
}

// HandleCreateOrder creates a new order from the checkout payload.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.CreateOrderRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	order, err := h.service.CreateOrder(c.UserContext(), middleware.CallerFrom(c), req)
	if err != nil {
		log.Printf("Error creating order: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"order":   order,
	})
}

// HandleListMyOrders lists the caller's orders.
func (h *OrderHandler) HandleListMyOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListUserOrders(c.UserContext(), middleware.CallerFrom(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
	})
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrderByID(c.UserContext(), middleware.CallerFrom(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

// HandleGetOrders returns one page of all orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, page, err := h.service.GetOrders(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("size", 10))
	if err != nil {
		log.Printf("Error getting orders: %v", err)
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Orders found successfully",
		"data":    orders,
		"pagination": fiber.Map{
			"currentPage": page.CurrentPage,
			"pageSize":    page.PageSize,
			"totalOrders": page.Total,
			"totalPages":  page.TotalPages,
		},
	})
}

type deliveryStatusRequest struct {
	Status models.DeliveryStatus `json:"status" validate:"required,oneof=PENDING PROCESSING SHIPPED DELIVERED"`
}

// HandleUpdateDeliveryStatus moves an order along its delivery track.
func (h *OrderHandler) HandleUpdateDeliveryStatus(c *fiber.Ctx) error {
	var req deliveryStatusRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	orderID := c.Params("id")
	order, err := h.service.UpdateDeliveryStatus(c.UserContext(), orderID, req.Status)
	if err != nil {
		log.Printf("Error updating delivery status for order %s: %v", orderID, err)
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order updated successfully",
		"data":    order,
	})
}

// HandleDashboard returns the admin dashboard figures.
func (h *OrderHandler) HandleDashboard(c *fiber.Ctx) error {
	stats, err := h.service.Dashboard(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}
