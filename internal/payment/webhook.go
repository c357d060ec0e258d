package payment

import (
	"encoding/json"
	"fmt"

	"shophub/internal/apperr"
)

// Webhook headers sent by Razorpay.
const (
	SignatureHeader = "x-razorpay-signature"
	EventIDHeader   = "x-razorpay-event-id"
)

// Event kinds the service acts on. Anything else is acknowledged and ignored.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
	EventPaymentFailed   = "payment.failed"
	EventOrderCancelled  = "order.cancelled"
)

type paymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type orderEntity struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Event is the webhook envelope `{event, payload}`.
type Event struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment,omitempty"`
		Order *struct {
			Entity orderEntity `json:"entity"`
		} `json:"order,omitempty"`
	} `json:"payload"`
}

// GatewayOrderID returns the provider order the event refers to.
func (e *Event) GatewayOrderID() string {
	if e.Payload.Order != nil && e.Payload.Order.Entity.ID != "" {
		return e.Payload.Order.Entity.ID
	}
	if e.Payload.Payment != nil {
		return e.Payload.Payment.Entity.OrderID
	}
	return ""
}

// GatewayPaymentID returns the provider payment the event refers to, if any.
func (e *Event) GatewayPaymentID() string {
	if e.Payload.Payment != nil {
		return e.Payload.Payment.Entity.ID
	}
	return ""
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body: %v", apperr.ErrValidation, err)
	}
	if ev.Event == "" {
		return nil, fmt.Errorf("%w: webhook event kind is missing", apperr.ErrValidation)
	}
	return &ev, nil
}
