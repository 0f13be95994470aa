// Package pricing computes order totals.
//
// All amounts are integer Algerian dinars (DZD). There is no floating
// point anywhere in the money path: subtotal, fee and total are derived
// with integer arithmetic only, so the identity
//
//	total == unitPrice*quantity + deliveryFee
//
// holds exactly for every order.
package pricing

import "fmt"

// Quote is the priced breakdown of a single-item order.
type Quote struct {
	UnitPriceDzd   int64 `json:"unitPriceDzd"`
	Quantity       int   `json:"quantity"`
	SubtotalDzd    int64 `json:"subtotalDzd"`
	DeliveryFeeDzd int64 `json:"deliveryFeeDzd"`
	TotalDzd       int64 `json:"totalDzd"`
}

// Compute prices an order line: subtotal = unitPrice * quantity, and the
// flat delivery fee is added per order, not per unit.
func Compute(unitPriceDzd int64, quantity int, deliveryFeeDzd int64) (Quote, error) {
	if unitPriceDzd <= 0 {
		return Quote{}, fmt.Errorf("unit price must be positive, got %d", unitPriceDzd)
	}
	if quantity <= 0 {
		return Quote{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	if deliveryFeeDzd < 0 {
		return Quote{}, fmt.Errorf("delivery fee cannot be negative, got %d", deliveryFeeDzd)
	}

	subtotal := unitPriceDzd * int64(quantity)
	return Quote{
		UnitPriceDzd:   unitPriceDzd,
		Quantity:       quantity,
		SubtotalDzd:    subtotal,
		DeliveryFeeDzd: deliveryFeeDzd,
		TotalDzd:       subtotal + deliveryFeeDzd,
	}, nil
}
