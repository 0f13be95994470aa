package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a catalog store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, item *Item) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO items (id, seller_id, title, description, unit_price_dzd, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.SellerID, item.Title, item.Description,
		item.UnitPriceDzd, item.Active, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Item, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, seller_id, title, description, unit_price_dzd, active, created_at, updated_at
		FROM items WHERE id = $1`, id)
	return scanItem(row)
}

func (p *PostgresStore) ListActive(ctx context.Context, limit int) ([]*Item, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, seller_id, title, description, unit_price_dzd, active, created_at, updated_at
		FROM items WHERE active ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func (p *PostgresStore) ListBySeller(ctx context.Context, sellerID string, limit int) ([]*Item, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, seller_id, title, description, unit_price_dzd, active, created_at, updated_at
		FROM items WHERE seller_id = $1 ORDER BY created_at DESC LIMIT $2`, sellerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query seller items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func (p *PostgresStore) Update(ctx context.Context, item *Item) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE items SET title = $2, description = $3, unit_price_dzd = $4, active = $5, updated_at = $6
		WHERE id = $1`,
		item.ID, item.Title, item.Description, item.UnitPriceDzd, item.Active, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*Item, error) {
	var item Item
	err := row.Scan(
		&item.ID, &item.SellerID, &item.Title, &item.Description,
		&item.UnitPriceDzd, &item.Active, &item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return &item, nil
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
