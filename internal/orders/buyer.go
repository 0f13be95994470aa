package orders

import (
	"context"
	"time"

	"github.com/soukdz/souk/internal/auth"
	"github.com/soukdz/souk/internal/metrics"
	"github.com/soukdz/souk/internal/validation"
)

// SubmitReceipt attaches the buyer's payment receipt. Custody does not
// advance; verification is an admin act.
func (s *Service) SubmitReceipt(ctx context.Context, orderID, buyerID, receiptURL string) (*Order, error) {
	if errs := validation.Validate(
		validation.Required("receipt_url", receiptURL),
		validation.MaxLength("receipt_url", receiptURL, 2000),
	); len(errs) > 0 {
		return nil, errs
	}

	updated, err := s.store.Mutate(ctx, orderID, func(o *Order) error {
		if o.BuyerID != buyerID {
			return ErrNotOwner
		}
		next, status, err := NextState(o, auth.RoleBuyer, ActionSubmitReceipt)
		if err != nil {
			return err
		}
		o.EscrowStatus = next
		o.Status = status
		o.BuyerReceiptURL = receiptURL
		o.UpdatedAt = time.Now()
		return nil
	})
	recordTransition(ActionSubmitReceipt, updated, err)
	if err != nil {
		return nil, err
	}

	s.emit("order.receipt_submitted", updated)
	return updated, nil
}

// ConfirmDelivery releases escrowed funds to the seller on the buyer's say-so.
func (s *Service) ConfirmDelivery(ctx context.Context, orderID, buyerID string) (*Order, error) {
	updated, err := s.store.Mutate(ctx, orderID, func(o *Order) error {
		if o.BuyerID != buyerID {
			return ErrNotOwner
		}
		next, status, err := NextState(o, auth.RoleBuyer, ActionConfirmDelivery)
		if err != nil {
			return err
		}
		o.EscrowStatus = next
		o.Status = status
		o.BuyerConfirmation = true
		o.UpdatedAt = time.Now()
		return nil
	})
	recordTransition(ActionConfirmDelivery, updated, err)
	if err != nil {
		return nil, err
	}

	s.emit("order.delivered", updated)
	return updated, nil
}

// OpenDispute flags the order for admin ruling. Buyer and seller share this
// entry point; the role decides which side of the order the caller must own.
func (s *Service) OpenDispute(ctx context.Context, orderID, callerID string, role auth.Role, req DisputeRequest) (*Order, error) {
	if errs := validation.Validate(
		validation.Required("reason", req.Reason),
		validation.MaxLength("reason", req.Reason, validation.MaxStringLength),
	); len(errs) > 0 {
		return nil, errs
	}

	updated, err := s.store.Mutate(ctx, orderID, func(o *Order) error {
		switch role {
		case auth.RoleBuyer:
			if o.BuyerID != callerID {
				return ErrNotOwner
			}
		case auth.RoleSeller:
			if o.SellerID != callerID {
				return ErrNotOwner
			}
		default:
			return ErrNotOwner
		}
		next, status, err := NextState(o, role, ActionOpenDispute)
		if err != nil {
			return err
		}
		now := time.Now()
		o.EscrowStatus = next
		o.Status = status
		o.Dispute = &Dispute{
			Reason:        validation.SanitizeString(req.Reason, validation.MaxStringLength),
			Status:        DisputeOpen,
			OpenedBy:      role,
			AttachmentURL: req.AttachmentURL,
			OpenedAt:      now,
			UpdatedAt:     now,
		}
		o.UpdatedAt = now
		return nil
	})
	recordTransition(ActionOpenDispute, updated, err)
	if err != nil {
		return nil, err
	}

	metrics.DisputesOpenedTotal.WithLabelValues(string(role)).Inc()
	s.emit("order.disputed", updated)
	return updated, nil
}
