package repositories

import (
	"context"

	"shophub/internal/models"
)

// OrderRepository defines the interface for order data access. Every state changing method
// is a single atomic unit guarded by a conditional write on the current status.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	List(ctx context.Context, page, size int) ([]models.Order, int64, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)

	// SetDeliveryStatus moves an order to a delivery status other than DELIVERED.
	SetDeliveryStatus(ctx context.Context, id string, status models.DeliveryStatus) (*models.Order, error)
	// MarkDelivered moves an order to DELIVERED and decrements stock in the same transaction.
	// The bool reports whether this call performed the transition.
	MarkDelivered(ctx context.Context, id string) (*models.Order, bool, error)
	// MarkPaid completes the order unless it is already COMPLETED.
	MarkPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*models.Order, bool, error)
	// MarkCancelled cancels the order only while it is PENDING.
	MarkCancelled(ctx context.Context, gatewayOrderID string) (*models.Order, bool, error)
	// DeleteUnpaid removes an ONLINE order that has no completed payment.
	DeleteUnpaid(ctx context.Context, id string) (*models.Order, error)
	DeleteUnpaidByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)

	Stats(ctx context.Context) (*models.DashboardStats, error)
}

// WebhookEventRepository records processed provider events.
type WebhookEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string) error
}
