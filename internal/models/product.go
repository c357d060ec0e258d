package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a product in the store.
type Product struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name            string          `json:"name" gorm:"type:varchar(100);not null"`
	Slug            string          `json:"slug" gorm:"uniqueIndex;type:varchar(160)"`
	Description     string          `json:"description"`
	Category        string          `json:"category" gorm:"type:varchar(100);index"`
	Price           decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	DiscountPercent decimal.Decimal `json:"discountPercent" gorm:"type:decimal(5,2);not null;default:0"`
	DiscountPrice   decimal.Decimal `json:"discountPrice" gorm:"type:decimal(12,2);not null;default:0"`
	Stock           int             `json:"stock" gorm:"not null;default:0;check:stock >= 0"`
	ImageURL        string          `json:"imageUrl"`
	IsPublished     bool            `json:"isPublished" gorm:"not null;index"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt  `json:"-" gorm:"index"`
}

// HasDiscount reports whether a discount is active on the product. A 100% discount is active
// and makes the product free.
func (p *Product) HasDiscount() bool {
	return p.DiscountPercent.IsPositive()
}

// EffectivePrice is the unit price a customer pays right now.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.HasDiscount() {
		return p.DiscountPrice
	}
	return p.Price
}

// DiscountedPrice computes price - price*percent/100 rounded to two places,
// or zero when no discount applies.
func DiscountedPrice(price, percent decimal.Decimal) decimal.Decimal {
	if !percent.IsPositive() {
		return decimal.Zero
	}
	off := price.Mul(percent).Div(decimal.NewFromInt(100))
	return price.Sub(off).Round(2)
}
