// Package catalog holds the marketplace items orders are placed against.
//
// Only the slice of listing management that checkout needs lives here:
// sellers publish items with a price, buyers browse them, and the order
// service resolves itemId -> (unitPrice, sellerId) at checkout time.
package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soukdz/souk/internal/idgen"
	"github.com/soukdz/souk/internal/validation"
)

var (
	ErrItemNotFound = errors.New("item not found")
	ErrItemInactive = errors.New("item is no longer available")
)

// Item is a published marketplace listing.
type Item struct {
	ID           string    `json:"id"`
	SellerID     string    `json:"sellerId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	UnitPriceDzd int64     `json:"unitPriceDzd"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store persists catalog items.
type Store interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	ListActive(ctx context.Context, limit int) ([]*Item, error)
	ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Item, error)
	Update(ctx context.Context, item *Item) error
}

// CreateRequest contains the parameters for publishing an item.
type CreateRequest struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	UnitPriceDzd int64  `json:"unitPriceDzd" binding:"required"`
}

// Service implements catalog business logic.
type Service struct {
	store Store
}

// NewService creates a new catalog service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Publish creates a new active item owned by the seller.
func (s *Service) Publish(ctx context.Context, sellerID string, req CreateRequest) (*Item, error) {
	if errs := validation.Validate(
		validation.Required("title", req.Title),
		validation.PositiveAmount("unit_price_dzd", req.UnitPriceDzd),
	); len(errs) > 0 {
		return nil, errs
	}

	now := time.Now()
	item := &Item{
		ID:           idgen.WithPrefix("itm_"),
		SellerID:     sellerID,
		Title:        validation.SanitizeString(req.Title, 200),
		Description:  validation.SanitizeString(req.Description, validation.MaxStringLength),
		UnitPriceDzd: req.UnitPriceDzd,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Get returns an item by ID.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	return s.store.Get(ctx, id)
}

// ListActive returns currently purchasable items.
func (s *Service) ListActive(ctx context.Context, limit int) ([]*Item, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListActive(ctx, limit)
}

// ListBySeller returns a seller's items, active or not.
func (s *Service) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Item, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListBySeller(ctx, sellerID, limit)
}

// Deactivate takes an item off the market. Only the owning seller may do so.
func (s *Service) Deactivate(ctx context.Context, sellerID, id string) (*Item, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.SellerID != sellerID {
		return nil, errors.New("not the item's seller")
	}
	item.Active = false
	item.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// MemoryStore is an in-memory catalog store for demo/development mode.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Item
}

// NewMemoryStore creates a new in-memory catalog store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Item)}
}

func (m *MemoryStore) Create(ctx context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *MemoryStore) ListActive(ctx context.Context, limit int) ([]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Item
	for _, item := range m.items {
		if item.Active {
			cp := *item
			result = append(result, &cp)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MemoryStore) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Item
	for _, item := range m.items {
		if item.SellerID == sellerID {
			cp := *item
			result = append(result, &cp)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MemoryStore) Update(ctx context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return ErrItemNotFound
	}
	m.items[item.ID] = item
	return nil
}
