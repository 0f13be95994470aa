package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory order store for demo mode and tests. The mutex
// gives Mutate and ApplyEscrowTransition the same exclusivity a row lock
// gives the Postgres store.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

var (
	_ Store        = (*MemoryStore)(nil)
	_ CASApplier   = (*MemoryStore)(nil)
	_ ForceApplier = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new in-memory order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Order)}
}

func (m *MemoryStore) Create(ctx context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (m *MemoryStore) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Order, error) {
	return m.list(func(o *Order) bool { return o.BuyerID == buyerID }, limit)
}

func (m *MemoryStore) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Order, error) {
	return m.list(func(o *Order) bool { return o.SellerID == sellerID }, limit)
}

func (m *MemoryStore) ListByEscrowStatus(ctx context.Context, status EscrowStatus, limit int) ([]*Order, error) {
	return m.list(func(o *Order) bool { return o.EscrowStatus == status }, limit)
}

func (m *MemoryStore) list(match func(*Order) bool, limit int) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Order
	for _, o := range m.orders {
		if match(o) {
			result = append(result, o.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Mutate applies fn to the order under the store lock. fn receives a copy;
// the copy replaces the stored order only when fn returns nil.
func (m *MemoryStore) Mutate(ctx context.Context, id string, fn func(*Order) error) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := o.Clone()
	if err := fn(cp); err != nil {
		return nil, err
	}
	m.orders[id] = cp
	return cp.Clone(), nil
}

// ApplyEscrowTransition applies the transition iff the order is still in the
// expected from-state. A lost race returns a ConflictError carrying the state
// the order is actually in.
func (m *MemoryStore) ApplyEscrowTransition(ctx context.Context, id string, t Transition) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.EscrowStatus != t.From {
		return nil, &ConflictError{Action: t.Action, Current: o.EscrowStatus}
	}
	cp := o.Clone()
	t.apply(cp, time.Now())
	m.orders[id] = cp
	return cp.Clone(), nil
}

// ForceEscrowStatus writes the transition fields without re-checking the
// from-state. Degraded path only.
func (m *MemoryStore) ForceEscrowStatus(ctx context.Context, id string, t Transition) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := o.Clone()
	t.apply(cp, time.Now())
	m.orders[id] = cp
	return cp.Clone(), nil
}
