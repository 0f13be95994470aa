package orders

import (
	"context"
	"time"
)

// Transition is a pre-validated escrow transition ready to apply: the state
// machine has already been consulted against a snapshot, and From is the
// snapshot's escrow status so the write can be conditioned on it.
type Transition struct {
	Action         Action
	From           EscrowStatus
	To             EscrowStatus
	Status         Status
	Note           string
	ResolveDispute bool
}

// apply mutates an order in place with the transition's effects.
func (t Transition) apply(o *Order, now time.Time) {
	o.EscrowStatus = t.To
	o.Status = t.Status
	if t.ResolveDispute && o.Dispute != nil {
		o.Dispute.Status = DisputeResolved
		o.Dispute.ResolutionAction = string(t.Action)
		o.Dispute.ResolutionNote = t.Note
		o.Dispute.UpdatedAt = now
	}
	o.UpdatedAt = now
}

// TransitionStrategy applies a privileged admin transition to storage.
//
// The atomic strategy is the normal path: a single server-side operation that
// re-checks the from-state and writes the new state in one transaction.
// The degraded strategy is the documented compatibility shim for deployments
// whose database predates the atomic operation: a direct field update with no
// from-state re-check. Both return the same result shape; only logs and
// metrics record which path ran.
type TransitionStrategy interface {
	Name() string
	Apply(ctx context.Context, orderID string, t Transition) (*Order, error)
}

// CASApplier is implemented by stores that can apply a transition atomically,
// conditioned on the expected from-state. A store whose backing schema lacks
// the capability returns ErrCapabilityMissing.
type CASApplier interface {
	ApplyEscrowTransition(ctx context.Context, orderID string, t Transition) (*Order, error)
}

// ForceApplier is implemented by stores that can write transition fields
// directly, without re-checking the from-state.
type ForceApplier interface {
	ForceEscrowStatus(ctx context.Context, orderID string, t Transition) (*Order, error)
}

// AtomicStrategy applies transitions through the store's compare-and-swap
// operation.
type AtomicStrategy struct {
	store CASApplier
}

// NewAtomicStrategy creates the normal-path transition strategy.
func NewAtomicStrategy(store CASApplier) *AtomicStrategy {
	return &AtomicStrategy{store: store}
}

func (s *AtomicStrategy) Name() string { return "atomic" }

func (s *AtomicStrategy) Apply(ctx context.Context, orderID string, t Transition) (*Order, error) {
	return s.store.ApplyEscrowTransition(ctx, orderID, t)
}

// DegradedStrategy applies transitions as direct field updates. It loses the
// atomicity and guard re-validation of the atomic path and exists only so
// environments mid-migration keep working.
type DegradedStrategy struct {
	store ForceApplier
}

// NewDegradedStrategy creates the fallback transition strategy.
func NewDegradedStrategy(store ForceApplier) *DegradedStrategy {
	return &DegradedStrategy{store: store}
}

func (s *DegradedStrategy) Name() string { return "degraded" }

func (s *DegradedStrategy) Apply(ctx context.Context, orderID string, t Transition) (*Order, error) {
	return s.store.ForceEscrowStatus(ctx, orderID, t)
}

// unsupportedStrategy stands in when the store implements neither applier,
// so admin transitions fail with a clear error instead of a nil dereference.
type unsupportedStrategy struct{}

func (unsupportedStrategy) Name() string { return "unsupported" }

func (unsupportedStrategy) Apply(ctx context.Context, orderID string, t Transition) (*Order, error) {
	return nil, ErrTransitionsUnsupported
}
