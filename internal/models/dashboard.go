package models

import "github.com/shopspring/decimal"

type PaymentMethodCount struct {
	Method PaymentMethod `json:"paymentMethod"`
	Count  int64         `json:"count"`
}

// DashboardStats aggregates catalog and order figures for the admin dashboard.
type DashboardStats struct {
	TotalProducts     int64                `json:"totalProducts"`
	TotalOrders       int64                `json:"totalOrders"`
	TotalIncome       decimal.Decimal      `json:"totalIncome"`
	PaymentMethods    []PaymentMethodCount `json:"paymentMethods"`
	PendingDeliveries int64                `json:"pendingDeliveries"`
}
