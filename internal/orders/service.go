package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/soukdz/souk/internal/idgen"
	"github.com/soukdz/souk/internal/metrics"
	"github.com/soukdz/souk/internal/pricing"
	"github.com/soukdz/souk/internal/traces"
	"github.com/soukdz/souk/internal/validation"
)

// Service implements the order escrow business logic. Buyer, seller and
// admin entry points live in buyer.go, seller.go and admin.go.
type Service struct {
	store       Store
	catalog     Catalog
	atomic      TransitionStrategy
	degraded    TransitionStrategy
	events      EventEmitter
	deliveryFee int64
	maxQty      int
}

// NewService creates a new order service. If the store supports the atomic
// and direct transition operations they become the default admin strategies;
// a store implementing neither gets a stand-in whose admin transitions fail
// with ErrTransitionsUnsupported.
func NewService(store Store, catalog Catalog, deliveryFeeDzd int64, maxQuantity int) *Service {
	s := &Service{
		store:       store,
		catalog:     catalog,
		atomic:      unsupportedStrategy{},
		degraded:    unsupportedStrategy{},
		deliveryFee: deliveryFeeDzd,
		maxQty:      maxQuantity,
	}
	if cas, ok := store.(CASApplier); ok {
		s.atomic = NewAtomicStrategy(cas)
	}
	if force, ok := store.(ForceApplier); ok {
		s.degraded = NewDegradedStrategy(force)
	}
	return s
}

// WithStrategies overrides the admin transition strategies.
func (s *Service) WithStrategies(atomic, degraded TransitionStrategy) *Service {
	s.atomic = atomic
	s.degraded = degraded
	return s
}

// WithEmitter adds a lifecycle event emitter.
func (s *Service) WithEmitter(e EventEmitter) *Service {
	s.events = e
	return s
}

func (s *Service) emit(event string, order *Order) {
	if s.events != nil {
		s.events.OrderEvent(event, order)
	}
}

// Checkout creates one independent order per line. Lines are processed in
// request order; a failing line aborts the remainder but already-created
// orders stand, and the returned LineError says where processing stopped.
func (s *Service) Checkout(ctx context.Context, buyerID string, req CheckoutRequest) ([]*Order, error) {
	ctx, span := traces.StartSpan(ctx, "orders.Checkout")
	defer span.End()

	if errs := validation.Validate(
		validation.Required("buyer_first_name", req.BuyerFirstName),
		validation.Required("buyer_last_name", req.BuyerLastName),
		validation.Required("delivery_address", req.DeliveryAddr),
	); len(errs) > 0 {
		return nil, errs
	}
	if len(req.Lines) == 0 {
		return nil, validation.ValidationErrors{
			{Field: "lines", Message: "at least one line is required"},
		}
	}

	delivery := Delivery{
		FirstName: validation.SanitizeString(req.BuyerFirstName, 100),
		LastName:  validation.SanitizeString(req.BuyerLastName, 100),
		Address:   validation.SanitizeString(req.DeliveryAddr, 500),
		Location:  validation.SanitizeString(req.DeliveryLoc, 500),
	}

	var created []*Order
	for i, line := range req.Lines {
		order, err := s.createOrder(ctx, buyerID, delivery, line)
		if err != nil {
			return created, &LineError{Index: i, ItemID: line.ItemID, Err: err}
		}
		created = append(created, order)
	}
	return created, nil
}

func (s *Service) createOrder(ctx context.Context, buyerID string, delivery Delivery, line CheckoutLine) (*Order, error) {
	if errs := validation.Validate(
		validation.ValidID("item_id", line.ItemID),
		validation.PositiveQuantity("quantity", line.Quantity, s.maxQty),
	); len(errs) > 0 {
		return nil, errs
	}

	item, err := s.catalog.Item(ctx, line.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, fmt.Errorf("item %s is no longer available", item.ID)
	}
	if item.SellerID == buyerID {
		return nil, fmt.Errorf("cannot order your own item")
	}

	quote, err := pricing.Compute(item.UnitPriceDzd, line.Quantity, s.deliveryFee)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &Order{
		ID:             idgen.WithPrefix("ord_"),
		BuyerID:        buyerID,
		SellerID:       item.SellerID,
		ItemID:         item.ID,
		ItemTitle:      item.Title,
		Quantity:       quote.Quantity,
		UnitPriceDzd:   quote.UnitPriceDzd,
		DeliveryFeeDzd: quote.DeliveryFeeDzd,
		TotalPriceDzd:  quote.TotalDzd,
		Status:         StatusPending,
		EscrowStatus:   EscrowPendingReceipt,
		Delivery:       delivery,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	metrics.OrdersCreatedTotal.Inc()
	s.emit("order.created", order)
	return order, nil
}

// Get returns an order by ID.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Get(ctx, id)
}

// ListByBuyer returns a buyer's orders, newest first.
func (s *Service) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Order, error) {
	return s.store.ListByBuyer(ctx, buyerID, clampLimit(limit))
}

// ListBySeller returns a seller's orders, newest first.
func (s *Service) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Order, error) {
	return s.store.ListBySeller(ctx, sellerID, clampLimit(limit))
}

// ListByEscrowStatus returns orders in the given custody state, for the
// admin work queue.
func (s *Service) ListByEscrowStatus(ctx context.Context, status EscrowStatus, limit int) ([]*Order, error) {
	return s.store.ListByEscrowStatus(ctx, status, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

// recordTransition updates the transition counter and, on settlement, the
// time-to-settle histogram.
func recordTransition(action Action, order *Order, err error) {
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	metrics.EscrowTransitionsTotal.WithLabelValues(string(action), outcome).Inc()
	if err == nil && order != nil && order.EscrowStatus.IsTerminal() {
		metrics.EscrowSettlementDuration.Observe(time.Since(order.CreatedAt).Seconds())
	}
}
