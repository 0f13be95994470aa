package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/soukdz/souk/internal/auth"
	"github.com/soukdz/souk/internal/logging"
	"github.com/soukdz/souk/internal/metrics"
	"github.com/soukdz/souk/internal/traces"
)

// VerifyFunds confirms the buyer's payment receipt and moves custody into
// funds_held.
func (s *Service) VerifyFunds(ctx context.Context, orderID string) (*Order, error) {
	return s.adminTransition(ctx, orderID, ActionVerifyFunds, "")
}

// ReleaseToSeller settles escrow in the seller's favor, resolving an open
// dispute if one exists.
func (s *Service) ReleaseToSeller(ctx context.Context, orderID, note string) (*Order, error) {
	return s.adminTransition(ctx, orderID, ActionReleaseToSeller, note)
}

// RefundBuyer settles escrow in the buyer's favor, resolving an open dispute
// if one exists.
func (s *Service) RefundBuyer(ctx context.Context, orderID, note string) (*Order, error) {
	return s.adminTransition(ctx, orderID, ActionRefundBuyer, note)
}

// AdminTransition dispatches a wire-level admin transition request.
func (s *Service) AdminTransition(ctx context.Context, orderID string, req AdminTransitionRequest) (*Order, error) {
	switch req.Action {
	case ActionVerifyFunds:
		return s.VerifyFunds(ctx, orderID)
	case ActionReleaseToSeller:
		return s.ReleaseToSeller(ctx, orderID, req.Note)
	case ActionRefundBuyer:
		return s.RefundBuyer(ctx, orderID, req.Note)
	default:
		return nil, fmt.Errorf("unknown admin action %q", req.Action)
	}
}

// adminTransition runs the privileged transition flow: snapshot, consult the
// state machine, then apply atomically. When the atomic operation is missing
// from the deployment (schema behind on migrations) it falls back to the
// degraded direct update, logged and counted so the lost guarantee is never
// silent.
func (s *Service) adminTransition(ctx context.Context, orderID string, action Action, note string) (*Order, error) {
	ctx, span := traces.StartSpan(ctx, "orders.adminTransition",
		traces.OrderID(orderID), traces.EscrowAction(string(action)), traces.ActorRole("admin"))
	defer span.End()

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	to, status, err := NextState(order, auth.RoleAdmin, action)
	if err != nil {
		recordTransition(action, nil, err)
		return nil, err
	}

	t := Transition{
		Action:         action,
		From:           order.EscrowStatus,
		To:             to,
		Status:         status,
		Note:           note,
		ResolveDispute: order.Dispute != nil && order.Dispute.Status == DisputeOpen,
	}

	strategy := s.atomic
	updated, err := strategy.Apply(ctx, orderID, t)
	if errors.Is(err, ErrCapabilityMissing) {
		logging.L(ctx).Warn("escrow transition degraded: atomic operation unavailable, applying direct update",
			logging.Order(orderID),
			"action", string(action),
			"from", string(t.From),
			"to", string(t.To),
		)
		metrics.AdminFallbackTotal.WithLabelValues(string(action)).Inc()
		span.SetAttributes(traces.Strategy("degraded"))

		strategy = s.degraded
		updated, err = strategy.Apply(ctx, orderID, t)
		if err != nil {
			recordTransition(action, nil, err)
			return nil, fmt.Errorf("%w: %v", ErrMigrationRequired, err)
		}
	}
	recordTransition(action, updated, err)
	if err != nil {
		return nil, err
	}

	logging.L(ctx).Info("escrow transition applied",
		logging.Order(orderID),
		"action", string(action),
		"from", string(t.From),
		"to", string(t.To),
		"strategy", strategy.Name(),
	)
	s.emit("order.escrow_"+string(action), updated)
	return updated, nil
}
