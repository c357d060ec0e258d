package handlers

import (
	"log"

	"shophub/internal/middleware"
	"shophub/internal/payment"
	"shophub/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// PaymentHandler handles payment confirmations and provider webhooks.
type PaymentHandler struct {
	service  *services.PaymentService
	validate *validator.Validate
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterStoreRoutes registers the customer facing payment routes.
func (h *PaymentHandler) RegisterStoreRoutes(store fiber.Router, requireAuth fiber.Handler) {
	store.Post("/order/payment/verify", requireAuth, h.HandleVerifyPayment)
	store.Delete("/order/:id", requireAuth, h.HandleDeleteFailedOrder)
}

// RegisterWebhook registers the unauthenticated provider callback. Requests are
// authenticated by their body signature instead.
func (h *PaymentHandler) RegisterWebhook(router fiber.Router) {
	router.Post("/verification", h.HandleWebhook)
}

// HandleVerifyPayment checks the signature the client received from the provider.
func (h *PaymentHandler) HandleVerifyPayment(c *fiber.Ctx) error {
	var req services.VerifyPaymentRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	order, err := h.service.VerifyClientConfirmation(c.UserContext(), middleware.CallerFrom(c), req)
	if err != nil {
		log.Printf("Payment verification failed for order %s: %v", req.OrderID, err)
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"orderId":   order.ID,
		"paymentId": req.ExternalPaymentID,
	})
}

// HandleDeleteFailedOrder removes an online order whose payment did not go through.
func (h *PaymentHandler) HandleDeleteFailedOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if err := h.service.DeleteFailedOrder(c.UserContext(), middleware.CallerFrom(c), orderID); err != nil {
		log.Printf("Error deleting order %s: %v", orderID, err)
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order deleted successfully",
	})
}

// HandleWebhook verifies and applies a provider notification. The signature covers the raw
// body exactly as received, so the body is never decoded before verification.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	body := c.Body()
	err := h.service.HandleWebhook(c.UserContext(), body, c.Get(payment.SignatureHeader), c.Get(payment.EventIDHeader))
	if err != nil {
		log.Printf("Webhook rejected: %v", err)
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
