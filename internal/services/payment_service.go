package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"shophub/internal/apperr"
	"shophub/internal/config"
	"shophub/internal/models"
	"shophub/internal/payment"
	"shophub/internal/repositories"
	"shophub/pkg/rabbitmq"
)

// VerifyPaymentRequest is the confirmation the checkout client posts after paying.
type VerifyPaymentRequest struct {
	OrderID           string `json:"orderId" validate:"required"`
	ExternalOrderID   string `json:"externalOrderId" validate:"required"`
	ExternalPaymentID string `json:"externalPaymentId" validate:"required"`
	Signature         string `json:"signature" validate:"required"`
}

// PaymentService reconciles orders with the payment provider. Both the client confirmation
// and the webhook path converge on the same conditional writes, so they may race safely.
type PaymentService struct {
	orderRepo     repositories.OrderRepository
	eventRepo     repositories.WebhookEventRepository
	events        EventPublisher
	keySecret     string
	webhookSecret string
}

// NewPaymentService creates a new PaymentService. events may be nil.
func NewPaymentService(
	orderRepo repositories.OrderRepository,
	eventRepo repositories.WebhookEventRepository,
	events EventPublisher,
	cfg config.Payment,
) *PaymentService {
	return &PaymentService{
		orderRepo:     orderRepo,
		eventRepo:     eventRepo,
		events:        events,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}
}

// VerifyClientConfirmation checks the signature the provider handed the client. A valid
// signature completes the order; an invalid one cancels it and returns ErrSignatureMismatch.
func (s *PaymentService) VerifyClientConfirmation(ctx context.Context, caller Caller, req VerifyPaymentRequest) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(order.UserID) {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, req.OrderID)
	}
	if order.PaymentMethod != models.PaymentOnline || order.GatewayOrderID == nil {
		return nil, fmt.Errorf("%w: order %s is not an online order", apperr.ErrInvalidOperation, order.ID)
	}
	if *order.GatewayOrderID != req.ExternalOrderID {
		return nil, fmt.Errorf("%w: payment does not belong to order %s", apperr.ErrValidation, order.ID)
	}

	msg := payment.ConfirmationMessage(req.ExternalOrderID, req.ExternalPaymentID)
	if !payment.VerifySignature(msg, s.keySecret, req.Signature) {
		cancelled, changed, err := s.orderRepo.MarkCancelled(ctx, req.ExternalOrderID)
		if err != nil {
			return nil, err
		}
		if changed {
			log.Printf("Order %s cancelled after a payment signature mismatch", cancelled.ID)
			publishOrderEvent(s.events, rabbitmq.OrderCancelled, cancelled)
		}
		return nil, fmt.Errorf("%w: payment confirmation for order %s", apperr.ErrSignatureMismatch, order.ID)
	}

	paid, changed, err := s.orderRepo.MarkPaid(ctx, req.ExternalOrderID, req.ExternalPaymentID)
	if err != nil {
		return nil, err
	}
	if changed {
		log.Printf("Order %s paid by %s (client confirmation)", paid.ID, req.ExternalPaymentID)
		publishOrderEvent(s.events, rabbitmq.OrderPaid, paid)
	}
	return paid, nil
}

// HandleWebhook authenticates a provider notification over its exact raw body and applies it.
// Events for unknown orders and unknown event kinds are acknowledged without effect.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) error {
	if !payment.VerifySignature(body, s.webhookSecret, signature) {
		return fmt.Errorf("%w: webhook", apperr.ErrSignatureMismatch)
	}

	if eventID != "" && s.eventRepo != nil {
		seen, err := s.eventRepo.Exists(ctx, eventID)
		if err != nil {
			return err
		}
		if seen {
			log.Printf("Webhook event %s already processed, skipping", eventID)
			return nil
		}
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		return err
	}
	if err := s.dispatch(ctx, ev); err != nil {
		return err
	}

	if eventID != "" && s.eventRepo != nil {
		if err := s.eventRepo.MarkProcessed(ctx, eventID, ev.Event); err != nil {
			// the state change is already applied and idempotent; a redelivery is harmless
			log.Printf("Failed to record webhook event %s: %v", eventID, err)
		}
	}
	return nil
}

func (s *PaymentService) dispatch(ctx context.Context, ev *payment.Event) error {
	gatewayOrderID := ev.GatewayOrderID()

	switch ev.Event {
	case payment.EventPaymentCaptured, payment.EventOrderPaid:
		if gatewayOrderID == "" {
			return fmt.Errorf("%w: %s event without order id", apperr.ErrValidation, ev.Event)
		}
		order, changed, err := s.orderRepo.MarkPaid(ctx, gatewayOrderID, ev.GatewayPaymentID())
		if err != nil {
			return ignoreUnknownOrder(ev.Event, gatewayOrderID, err)
		}
		if changed {
			log.Printf("Order %s paid by %s (%s)", order.ID, ev.GatewayPaymentID(), ev.Event)
			publishOrderEvent(s.events, rabbitmq.OrderPaid, order)
		}

	case payment.EventPaymentFailed:
		if gatewayOrderID == "" {
			return fmt.Errorf("%w: %s event without order id", apperr.ErrValidation, ev.Event)
		}
		order, changed, err := s.orderRepo.MarkCancelled(ctx, gatewayOrderID)
		if err != nil {
			return ignoreUnknownOrder(ev.Event, gatewayOrderID, err)
		}
		if changed {
			log.Printf("Order %s cancelled (%s)", order.ID, ev.Event)
			publishOrderEvent(s.events, rabbitmq.OrderCancelled, order)
		}

	case payment.EventOrderCancelled:
		if gatewayOrderID == "" {
			return fmt.Errorf("%w: %s event without order id", apperr.ErrValidation, ev.Event)
		}
		order, err := s.orderRepo.DeleteUnpaidByGatewayOrderID(ctx, gatewayOrderID)
		if errors.Is(err, apperr.ErrInvalidOperation) {
			log.Printf("Ignoring %s for paid order %s", ev.Event, gatewayOrderID)
			return nil
		}
		if err != nil {
			return ignoreUnknownOrder(ev.Event, gatewayOrderID, err)
		}
		log.Printf("Order %s deleted (%s)", order.ID, ev.Event)
		publishOrderEvent(s.events, rabbitmq.OrderDeleted, order)

	default:
		log.Printf("Ignoring webhook event %s", ev.Event)
	}
	return nil
}

func ignoreUnknownOrder(event, gatewayOrderID string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		log.Printf("Ignoring %s for unknown order %s", event, gatewayOrderID)
		return nil
	}
	return err
}

// DeleteFailedOrder removes an ONLINE order whose payment never completed.
func (s *PaymentService) DeleteFailedOrder(ctx context.Context, caller Caller, orderID string) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !caller.CanAccess(order.UserID) {
		return fmt.Errorf("%w: order %s", apperr.ErrNotFound, orderID)
	}

	deleted, err := s.orderRepo.DeleteUnpaid(ctx, orderID)
	if err != nil {
		return err
	}
	log.Printf("Deleted failed order %s", deleted.ID)
	publishOrderEvent(s.events, rabbitmq.OrderDeleted, deleted)
	return nil
}
