package models

import "time"

// User represents a customer or an administrator of the store.
type User struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username string `json:"username" gorm:"uniqueIndex;type:varchar(100)"`
	Email    string `json:"email" gorm:"uniqueIndex;type:varchar(255)"`
	Password string `json:"-" gorm:"type:varchar(255)"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"isAdmin" gorm:"not null;default:false"`

	// Delivery address; copied onto a ShippingAddress when an order is placed.
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
	PhoneNumber string `json:"phoneNumber"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasAddress reports whether the profile carries a usable delivery address.
func (u *User) HasAddress() bool {
	return u.Street != "" && u.City != "" && u.PostalCode != "" && u.Country != ""
}

// AddressUpdate is the delivery address written by the address upsert.
type AddressUpdate struct {
	Name        *string `json:"name"`
	Street      string  `json:"street" validate:"required"`
	City        string  `json:"city" validate:"required"`
	State       string  `json:"state" validate:"required"`
	PostalCode  string  `json:"postalCode" validate:"required"`
	Country     string  `json:"country" validate:"required"`
	PhoneNumber string  `json:"phoneNumber" validate:"required"`
}
