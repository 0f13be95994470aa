package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists orders in PostgreSQL. Mutate takes the row lock with
// SELECT ... FOR UPDATE so every buyer/seller transition is read-check-write
// under the storage engine's serialization; the admin path goes through the
// apply_escrow_transition stored function instead (see ApplyEscrowTransition).
type PostgresStore struct {
	db *sql.DB
}

var (
	_ Store        = (*PostgresStore)(nil)
	_ CASApplier   = (*PostgresStore)(nil)
	_ ForceApplier = (*PostgresStore)(nil)
)

// NewPostgresStore creates a new PostgreSQL-backed order store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `id, buyer_id, seller_id, item_id, item_title, quantity,
	unit_price_dzd, delivery_fee_dzd, total_price_dzd,
	status, escrow_status, buyer_receipt_url, seller_shipping_proof,
	buyer_confirmation, dispute,
	delivery_first_name, delivery_last_name, delivery_address, delivery_location,
	created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, o *Order) error {
	disputeJSON, err := marshalDispute(o.Dispute)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		o.ID, o.BuyerID, o.SellerID, o.ItemID, o.ItemTitle, o.Quantity,
		o.UnitPriceDzd, o.DeliveryFeeDzd, o.TotalPriceDzd,
		string(o.Status), string(o.EscrowStatus),
		nullString(o.BuyerReceiptURL), nullString(o.SellerShippingProof),
		o.BuyerConfirmation, disputeJSON,
		o.Delivery.FirstName, o.Delivery.LastName, o.Delivery.Address, nullString(o.Delivery.Location),
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (p *PostgresStore) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]*Order, error) {
	return p.query(ctx, `WHERE buyer_id = $1`, buyerID, limit)
}

func (p *PostgresStore) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Order, error) {
	return p.query(ctx, `WHERE seller_id = $1`, sellerID, limit)
}

func (p *PostgresStore) ListByEscrowStatus(ctx context.Context, status EscrowStatus, limit int) ([]*Order, error) {
	return p.query(ctx, `WHERE escrow_status = $1`, string(status), limit)
}

func (p *PostgresStore) query(ctx context.Context, where string, arg any, limit int) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders `+where+`
		ORDER BY created_at DESC LIMIT $2`, arg, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// Mutate loads the order with a row lock, applies fn, and writes the result
// back in the same transaction. fn errors roll the transaction back.
func (p *PostgresStore) Mutate(ctx context.Context, id string, fn func(*Order) error) (*Order, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if err := fn(o); err != nil {
		return nil, err
	}

	if err := updateOrder(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return o, nil
}

// ApplyEscrowTransition calls the apply_escrow_transition stored function,
// which re-checks the from-state and writes the transition in one server-side
// transaction. SQLSTATE 42883 (undefined_function) means the deployment's
// schema predates the function and is reported as ErrCapabilityMissing so the
// caller can fall back.
func (p *PostgresStore) ApplyEscrowTransition(ctx context.Context, id string, t Transition) (*Order, error) {
	var ok bool
	err := p.db.QueryRowContext(ctx,
		`SELECT apply_escrow_transition($1, $2, $3, $4, $5, $6, $7)`,
		id, string(t.From), string(t.To), string(t.Status),
		string(t.Action), nullString(t.Note), t.ResolveDispute,
	).Scan(&ok)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42883" {
			return nil, ErrCapabilityMissing
		}
		return nil, fmt.Errorf("apply escrow transition: %w", err)
	}
	if !ok {
		current, err := p.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &ConflictError{Action: t.Action, Current: current.EscrowStatus}
	}
	return p.Get(ctx, id)
}

// ForceEscrowStatus writes the transition fields directly, with no from-state
// predicate. This is the degraded compatibility path only.
func (p *PostgresStore) ForceEscrowStatus(ctx context.Context, id string, t Transition) (*Order, error) {
	o, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.apply(o, time.Now())

	disputeJSON, err := marshalDispute(o.Dispute)
	if err != nil {
		return nil, err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, escrow_status = $3, dispute = $4, updated_at = $5
		WHERE id = $1`,
		o.ID, string(o.Status), string(o.EscrowStatus), disputeJSON, o.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("force escrow status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateOrder(ctx context.Context, db execer, o *Order) error {
	disputeJSON, err := marshalDispute(o.Dispute)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE orders SET
			status = $2, escrow_status = $3,
			buyer_receipt_url = $4, seller_shipping_proof = $5,
			buyer_confirmation = $6, dispute = $7, updated_at = $8
		WHERE id = $1`,
		o.ID, string(o.Status), string(o.EscrowStatus),
		nullString(o.BuyerReceiptURL), nullString(o.SellerShippingProof),
		o.BuyerConfirmation, disputeJSON, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*Order, error) {
	o := &Order{}
	var (
		status      string
		escrow      string
		receiptURL  sql.NullString
		proofURL    sql.NullString
		disputeJSON []byte
		location    sql.NullString
	)
	err := s.Scan(
		&o.ID, &o.BuyerID, &o.SellerID, &o.ItemID, &o.ItemTitle, &o.Quantity,
		&o.UnitPriceDzd, &o.DeliveryFeeDzd, &o.TotalPriceDzd,
		&status, &escrow, &receiptURL, &proofURL,
		&o.BuyerConfirmation, &disputeJSON,
		&o.Delivery.FirstName, &o.Delivery.LastName, &o.Delivery.Address, &location,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Status = Status(status)
	o.EscrowStatus = EscrowStatus(escrow)
	o.BuyerReceiptURL = receiptURL.String
	o.SellerShippingProof = proofURL.String
	o.Delivery.Location = location.String
	if len(disputeJSON) > 0 {
		var d Dispute
		if err := json.Unmarshal(disputeJSON, &d); err != nil {
			return nil, fmt.Errorf("decode dispute: %w", err)
		}
		o.Dispute = &d
	}
	return o, nil
}

func marshalDispute(d *Dispute) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode dispute: %w", err)
	}
	return b, nil
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
