package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "ONLINE"
	PaymentCOD    PaymentMethod = "COD"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentOnline || m == PaymentCOD
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "PENDING"
	DeliveryProcessing DeliveryStatus = "PROCESSING"
	DeliveryShipped    DeliveryStatus = "SHIPPED"
	DeliveryDelivered  DeliveryStatus = "DELIVERED"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryProcessing, DeliveryShipped, DeliveryDelivered:
		return true
	}
	return false
}

// OrderItem is one line of an order. Price is the unit price at the time of order
// and is never recomputed from the live product.
type OrderItem struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string          `json:"orderId" gorm:"type:varchar(36);index;not null"`
	ProductID string          `json:"productId" gorm:"type:varchar(36);index;not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Subtotal is Price × Quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ShippingAddress is created fresh for every order from the user's profile.
type ShippingAddress struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name"`
	Street      string    `json:"street"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	PostalCode  string    `json:"postalCode"`
	Country     string    `json:"country"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Order represents a customer order.
type Order struct {
	ID                string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID            string           `json:"userId" gorm:"type:varchar(36);index;not null"`
	PaymentMethod     PaymentMethod    `json:"paymentMethod" gorm:"type:varchar(16);not null;index"`
	Status            OrderStatus      `json:"status" gorm:"type:varchar(16);not null;index"`
	DeliveryStatus    DeliveryStatus   `json:"deliveryStatus" gorm:"type:varchar(16);not null;index"`
	TotalAmount       decimal.Decimal  `json:"totalAmount" gorm:"type:decimal(12,2);not null"`
	Currency          string           `json:"currency" gorm:"type:varchar(8);not null"`
	GatewayOrderID    *string          `json:"gatewayOrderId" gorm:"type:varchar(64);uniqueIndex"`
	GatewayPaymentID  *string          `json:"gatewayPaymentId" gorm:"type:varchar(64)"`
	ShippingAddressID string           `json:"shippingAddressId" gorm:"type:varchar(36);not null"`
	ShippingAddress   *ShippingAddress `json:"shippingAddress,omitempty" gorm:"foreignKey:ShippingAddressID"`
	Items             []OrderItem      `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// ItemsTotal sums the line item subtotals.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// IsPaid reports whether a completed payment has been recorded on the order.
func (o *Order) IsPaid() bool {
	return o.Status == OrderCompleted
}

// WebhookEvent records a processed provider event id so replays are skipped.
type WebhookEvent struct {
	EventID     string    `gorm:"primaryKey;type:varchar(128)"`
	EventType   string    `gorm:"type:varchar(64);index"`
	ProcessedAt time.Time
}
