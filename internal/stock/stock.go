// Package stock computes inventory adjustments for delivered orders.
package stock

import (
	"fmt"

	"shophub/internal/apperr"
)

// Line is a quantity of one product leaving the warehouse.
type Line struct {
	ProductID string
	Quantity  int
}

// Apply returns the stock levels after removing every line from levels.
// Either all lines fit or an ErrInsufficientStock error is returned and levels is untouched.
// Several lines for the same product accumulate.
func Apply(lines []Line, levels map[string]int) (map[string]int, error) {
	next := make(map[string]int, len(levels))
	for id, n := range levels {
		next[id] = n
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %s must be positive", apperr.ErrValidation, l.ProductID)
		}
		current, ok := next[l.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", apperr.ErrNotFound, l.ProductID)
		}
		if current-l.Quantity < 0 {
			return nil, fmt.Errorf("%w: product %s has %d, needs %d", apperr.ErrInsufficientStock, l.ProductID, current, l.Quantity)
		}
		next[l.ProductID] = current - l.Quantity
	}
	return next, nil
}

// Totals folds lines into one decrement per product.
func Totals(lines []Line) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.ProductID] += l.Quantity
	}
	return out
}
