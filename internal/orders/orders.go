// Package orders implements the escrow-protected order lifecycle.
//
// Flow:
//  1. Buyer checks out → order created, escrow pending_receipt
//  2. Buyer uploads payment receipt → still pending_receipt
//  3. Admin verifies funds → funds_held
//  4. Seller ships with proof → funds_held, status shipped
//  5. Buyer confirms delivery → released_to_seller
//  6. Either party may dispute before settlement; admin resolves by
//     releasing to the seller or refunding the buyer
//
// Every transition is decided by the state machine in statemachine.go and
// applied read-check-write inside the store, so concurrent calls on the
// same order are serialized by the storage engine.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soukdz/souk/internal/auth"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrNotOwner          = errors.New("not authorized for this order operation")
	ErrCapabilityMissing = errors.New("atomic escrow transition unavailable")
	ErrMigrationRequired = errors.New("escrow transition could not be applied; database migration required")

	// ErrTransitionsUnsupported means the configured store implements
	// neither transition applier, so no admin strategy exists at all.
	ErrTransitionsUnsupported = errors.New("store does not support admin escrow transitions")

	// ErrGuardViolation and ErrConflict are matched via errors.Is against
	// the typed GuardError and ConflictError values.
	ErrGuardViolation = errors.New("escrow guard violation")
	ErrConflict       = errors.New("escrow transition conflict")
)

// GuardError reports an action the transition table does not allow from the
// order's current escrow state. It names both so callers can present an
// accurate message instead of a generic failure.
type GuardError struct {
	Action Action
	From   EscrowStatus
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("action %q is not allowed while escrow status is %q", e.Action, e.From)
}

func (e *GuardError) Is(target error) bool { return target == ErrGuardViolation }

// ConflictError reports a transition that lost a race: by the time the write
// was attempted another call had already moved the order. Current carries the
// state the loser observed.
type ConflictError struct {
	Action  Action
	Current EscrowStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("action %q lost a concurrent update; escrow status is now %q", e.Action, e.Current)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Status is the business/fulfilment status of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing" // reserved for fulfilment tooling
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusDisputed   Status = "disputed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

// EscrowStatus is the custody status of the buyer's payment. This is the
// controlling field of the state machine.
type EscrowStatus string

const (
	EscrowPendingReceipt EscrowStatus = "pending_receipt"    // awaiting buyer's payment receipt
	EscrowFundsHeld      EscrowStatus = "funds_held"         // admin verified the receipt, funds in trust
	EscrowDisputed       EscrowStatus = "disputed"           // a party flagged the order for admin ruling
	EscrowReleased       EscrowStatus = "released_to_seller" // terminal
	EscrowRefunded       EscrowStatus = "refunded_to_buyer"  // terminal
)

// IsTerminal returns true if no further transition is permitted.
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowReleased || s == EscrowRefunded
}

// Valid returns true if s is one of the wire enum values.
func (s EscrowStatus) Valid() bool {
	switch s {
	case EscrowPendingReceipt, EscrowFundsHeld, EscrowDisputed, EscrowReleased, EscrowRefunded:
		return true
	}
	return false
}

// Action is an escrow transition request.
type Action string

const (
	ActionSubmitReceipt   Action = "submit_receipt"
	ActionVerifyFunds     Action = "verify_funds"
	ActionMarkShipped     Action = "mark_shipped"
	ActionConfirmDelivery Action = "confirm_delivery"
	ActionOpenDispute     Action = "open_dispute"
	ActionReleaseToSeller Action = "release_to_seller"
	ActionRefundBuyer     Action = "refund_buyer"
)

// DisputeStatus is the state of a dispute episode.
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
)

// Dispute is the sub-record created when a party disputes an order. It is
// created exactly once per episode and mutated only by admin resolution.
type Dispute struct {
	Reason           string        `json:"reason"`
	Status           DisputeStatus `json:"status"`
	OpenedBy         auth.Role     `json:"openedBy"`
	AttachmentURL    string        `json:"attachmentUrl,omitempty"`
	ResolutionAction string        `json:"resolutionAction,omitempty"`
	ResolutionNote   string        `json:"resolutionNote,omitempty"`
	OpenedAt         time.Time     `json:"openedAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// Delivery is the buyer-supplied shipping destination.
type Delivery struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	Location  string `json:"location"`
}

// Order is the persisted escrow-protected order record.
type Order struct {
	ID                  string       `json:"id"`
	BuyerID             string       `json:"buyerId"`
	SellerID            string       `json:"sellerId"`
	ItemID              string       `json:"itemId"`
	ItemTitle           string       `json:"itemTitle"`
	Quantity            int          `json:"quantity"`
	UnitPriceDzd        int64        `json:"unitPriceDzd"`
	DeliveryFeeDzd      int64        `json:"deliveryFeeDzd"`
	TotalPriceDzd       int64        `json:"totalPriceDzd"`
	Status              Status       `json:"status"`
	EscrowStatus        EscrowStatus `json:"escrowStatus"`
	BuyerReceiptURL     string       `json:"buyerReceiptUrl,omitempty"`
	SellerShippingProof string       `json:"sellerShippingProof,omitempty"`
	BuyerConfirmation   bool         `json:"buyerConfirmation"`
	Dispute             *Dispute     `json:"dispute,omitempty"`
	Delivery            Delivery     `json:"delivery"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	cp := *o
	if o.Dispute != nil {
		d := *o.Dispute
		cp.Dispute = &d
	}
	return &cp
}

// Store persists order records. Mutate is the write path for every buyer and
// seller transition: implementations must hold the row exclusively while fn
// runs (row lock in Postgres, mutex in memory) and persist the mutated order
// only when fn returns nil.
type Store interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Order, error)
	ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Order, error)
	ListByEscrowStatus(ctx context.Context, status EscrowStatus, limit int) ([]*Order, error)
	Mutate(ctx context.Context, id string, fn func(*Order) error) (*Order, error)
}

// CatalogItem is the slice of a listing that checkout needs.
type CatalogItem struct {
	ID           string
	SellerID     string
	Title        string
	UnitPriceDzd int64
	Active       bool
}

// Catalog resolves item references at checkout so orders doesn't import the
// catalog package.
type Catalog interface {
	Item(ctx context.Context, id string) (*CatalogItem, error)
}

// EventEmitter receives order lifecycle events for realtime fan-out.
type EventEmitter interface {
	OrderEvent(event string, order *Order)
}

// CheckoutLine is one item/quantity pair in a checkout request.
type CheckoutLine struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

// CheckoutRequest contains the parameters for creating orders. Each line
// becomes its own independent order with its own escrow lifecycle.
type CheckoutRequest struct {
	Lines          []CheckoutLine `json:"lines" binding:"required"`
	BuyerFirstName string         `json:"buyerFirstName" binding:"required"`
	BuyerLastName  string         `json:"buyerLastName" binding:"required"`
	DeliveryAddr   string         `json:"deliveryAddress" binding:"required"`
	DeliveryLoc    string         `json:"deliveryLocation"`
}

// DisputeRequest contains the parameters for opening a dispute.
type DisputeRequest struct {
	Reason        string `json:"reason" binding:"required"`
	AttachmentURL string `json:"attachmentUrl"`
}

// AdminTransitionRequest is the admin escrow call.
type AdminTransitionRequest struct {
	Action Action `json:"action" binding:"required"`
	Note   string `json:"note"`
}

// LineError reports which checkout line failed. Orders created for earlier
// lines are kept; there is no cross-order atomicity.
type LineError struct {
	Index  int
	ItemID string
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("checkout line %d (item %s): %v", e.Index, e.ItemID, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }
