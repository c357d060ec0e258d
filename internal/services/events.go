package services

import (
	"encoding/json"
	"log"
	"time"

	"shophub/internal/models"
	"shophub/pkg/rabbitmq"
)

// EventPublisher is the part of the message broker client the services use.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// Caller identifies the authenticated user on whose behalf a service method runs.
type Caller struct {
	UserID  string
	IsAdmin bool
}

// CanAccess reports whether the caller may act on a resource owned by ownerID.
func (c Caller) CanAccess(ownerID string) bool {
	return c.IsAdmin || (c.UserID != "" && c.UserID == ownerID)
}

// publishOrderEvent never fails the caller; broker problems are only logged.
func publishOrderEvent(pub EventPublisher, routingKey string, order *models.Order) {
	if pub == nil {
		log.Printf("RabbitMQ client is not initialized. Skipping %s for order %s.", routingKey, order.ID)
		return
	}

	body, err := json.Marshal(rabbitmq.OrderEvent{
		OrderID:        order.ID,
		UserID:         order.UserID,
		PaymentMethod:  string(order.PaymentMethod),
		Status:         string(order.Status),
		DeliveryStatus: string(order.DeliveryStatus),
		TotalAmount:    order.TotalAmount.StringFixed(2),
		Currency:       order.Currency,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Failed to marshal %s event for order %s: %v", routingKey, order.ID, err)
		return
	}
	if err := pub.Publish(rabbitmq.OrderExchange, routingKey, body); err != nil {
		log.Printf("Warning: Failed to publish %s event for order %s: %v", routingKey, order.ID, err)
	}
}

// Page describes one page of a listing.
type Page struct {
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
}

func newPage(page, size int, total int64) Page {
	return Page{
		CurrentPage: page,
		PageSize:    size,
		Total:       total,
		TotalPages:  int((total + int64(size) - 1) / int64(size)),
	}
}

// pageBounds normalizes pagination query values.
func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
