package orders

import (
	"context"
	"time"

	"github.com/soukdz/souk/internal/auth"
	"github.com/soukdz/souk/internal/validation"
)

// MarkShipped records the seller's dispatch with proof. Confirming shipment
// without proof is rejected outright, not left to the UI.
func (s *Service) MarkShipped(ctx context.Context, orderID, sellerID, proofURL string) (*Order, error) {
	if errs := validation.Validate(
		validation.Required("proof_url", proofURL),
		validation.MaxLength("proof_url", proofURL, 2000),
	); len(errs) > 0 {
		return nil, errs
	}

	updated, err := s.store.Mutate(ctx, orderID, func(o *Order) error {
		if o.SellerID != sellerID {
			return ErrNotOwner
		}
		next, status, err := NextState(o, auth.RoleSeller, ActionMarkShipped)
		if err != nil {
			return err
		}
		o.EscrowStatus = next
		o.Status = status
		o.SellerShippingProof = proofURL
		o.UpdatedAt = time.Now()
		return nil
	})
	recordTransition(ActionMarkShipped, updated, err)
	if err != nil {
		return nil, err
	}

	s.emit("order.shipped", updated)
	return updated, nil
}
