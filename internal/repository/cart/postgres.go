package cart

import (
	"context"
	"errors"
	"fmt"

	"brewpos/internal/domain"
	"brewpos/internal/repository/pgtx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Columns is the select list understood by ScanLineItem.
const Columns = `id::text, session_id, position, product_name, base_price_cents, size, add_ons, quantity,
       unit_price_cents, total_cents, status, transaction_id::text, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("cart_repo")}
}

func (r *postgresRepo) Add(ctx context.Context, item domain.LineItem) (*domain.LineItem, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := pgtx.LockSession(ctx, tx, item.SessionID); err != nil {
		return nil, err
	}

	q := `
INSERT INTO line_items (session_id, product_name, base_price_cents, size, add_ons, quantity, unit_price_cents, total_cents, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'Pending')
RETURNING ` + Columns
	created, err := ScanLineItem(tx.QueryRow(ctx, q,
		item.SessionID,
		item.ProductName,
		item.BasePriceCents,
		sizeArg(item.Size),
		addOnsArg(item.AddOns),
		item.Quantity,
		item.UnitPriceCents,
		item.TotalCents,
	))
	if err != nil {
		r.logger.Error("add", zap.String("session", item.SessionID), zap.Error(err))
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, pgtx.Classify(err)
	}
	r.logger.Debug("added", zap.String("session", created.SessionID), zap.String("item", created.ID))
	return created, nil
}

func (r *postgresRepo) Get(ctx context.Context, sessionID, id string) (*domain.LineItem, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + Columns + ` FROM line_items WHERE id = $1 AND session_id = $2`
	return ScanLineItem(r.pool.QueryRow(ctx, q, id, sessionID))
}

func (r *postgresRepo) Update(ctx context.Context, sessionID, id string, mutate func(*domain.LineItem) error) (*domain.LineItem, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := pgtx.LockSession(ctx, tx, sessionID); err != nil {
		return nil, err
	}

	q := `SELECT ` + Columns + `
FROM line_items
WHERE id = $1 AND session_id = $2 AND status = 'Pending'
FOR UPDATE`
	item, err := ScanLineItem(tx.QueryRow(ctx, q, id, sessionID))
	if err != nil {
		return nil, err
	}
	if err := mutate(item); err != nil {
		return nil, err
	}

	const upd = `
UPDATE line_items
SET size = $1, add_ons = $2, quantity = $3, unit_price_cents = $4, total_cents = $5, updated_at = now()
WHERE id = $6
RETURNING updated_at
`
	if err := tx.QueryRow(ctx, upd,
		sizeArg(item.Size),
		addOnsArg(item.AddOns),
		item.Quantity,
		item.UnitPriceCents,
		item.TotalCents,
		item.ID,
	).Scan(&item.UpdatedAt); err != nil {
		r.logger.Error("update", zap.String("item", id), zap.Error(err))
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, pgtx.Classify(err)
	}
	return item, nil
}

func (r *postgresRepo) Remove(ctx context.Context, sessionID, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := pgtx.LockSession(ctx, tx, sessionID); err != nil {
		return err
	}

	var status domain.LineItemStatus
	err = tx.QueryRow(ctx, `
SELECT status
FROM line_items
WHERE id = $1 AND session_id = $2
FOR UPDATE
`, id, sessionID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if status != domain.LineItemPending {
		return fmt.Errorf("%w: line item is %s", domain.ErrInvalidState, status)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM line_items WHERE id = $1`, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return pgtx.Classify(err)
	}
	r.logger.Debug("removed", zap.String("session", sessionID), zap.String("item", id))
	return nil
}

func (r *postgresRepo) ListPending(ctx context.Context, sessionID string) ([]domain.LineItem, error) {
	q := `SELECT ` + Columns + `
FROM line_items
WHERE session_id = $1 AND status = 'Pending'
ORDER BY position ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	return CollectLineItems(rows)
}

func (r *postgresRepo) ListByTransaction(ctx context.Context, transactionID string) ([]domain.LineItem, error) {
	if !validID(transactionID) {
		return nil, nil
	}
	q := `SELECT ` + Columns + `
FROM line_items
WHERE transaction_id = $1
ORDER BY position ASC`
	rows, err := r.pool.Query(ctx, q, transactionID)
	if err != nil {
		return nil, err
	}
	return CollectLineItems(rows)
}

func (r *postgresRepo) ClearPending(ctx context.Context, sessionID string) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if err := pgtx.LockSession(ctx, tx, sessionID); err != nil {
		return 0, err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM line_items WHERE session_id = $1 AND status = 'Pending'`, sessionID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, pgtx.Classify(err)
	}
	r.logger.Info("cleared", zap.String("session", sessionID), zap.Int64("items", cmd.RowsAffected()))
	return cmd.RowsAffected(), nil
}

// Void marks a Confirmed item Void. The owning transaction's total is left untouched;
// its status flips to Voided when its last standing item is voided.
func (r *postgresRepo) Void(ctx context.Context, id string) (*domain.LineItem, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	var sessionID string
	if err := r.pool.QueryRow(ctx, `SELECT session_id FROM line_items WHERE id = $1`, id).Scan(&sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := pgtx.LockSession(ctx, tx, sessionID); err != nil {
		return nil, err
	}
	q := `SELECT ` + Columns + ` FROM line_items WHERE id = $1 FOR UPDATE`
	item, err := ScanLineItem(tx.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if item.Status != domain.LineItemConfirmed {
		return nil, fmt.Errorf("%w: line item is %s", domain.ErrInvalidState, item.Status)
	}
	if err := tx.QueryRow(ctx, `
UPDATE line_items
SET status = 'Void', updated_at = now()
WHERE id = $1
RETURNING updated_at
`, id).Scan(&item.UpdatedAt); err != nil {
		return nil, err
	}
	// The transaction becomes Voided once none of its items is left standing.
	if _, err := tx.Exec(ctx, `
UPDATE transactions
SET status = 'Voided'
WHERE id = $1
  AND NOT EXISTS (SELECT 1 FROM line_items WHERE transaction_id = $1 AND status <> 'Void')
`, item.TransactionID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, pgtx.Classify(err)
	}
	item.Status = domain.LineItemVoid
	r.logger.Info("voided", zap.String("item", id), zap.Stringp("transaction", item.TransactionID))
	return item, nil
}

// ScanLineItem scans one row selected with Columns. pgx.ErrNoRows becomes domain.ErrNotFound.
func ScanLineItem(row pgx.Row) (*domain.LineItem, error) {
	var it domain.LineItem
	var size *string
	err := row.Scan(
		&it.ID,
		&it.SessionID,
		&it.Position,
		&it.ProductName,
		&it.BasePriceCents,
		&size,
		&it.AddOns,
		&it.Quantity,
		&it.UnitPriceCents,
		&it.TotalCents,
		&it.Status,
		&it.TransactionID,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if size != nil {
		it.Size = domain.Size(*size)
	}
	if it.AddOns == nil {
		it.AddOns = []string{}
	}
	return &it, nil
}

// CollectLineItems drains rows selected with Columns and closes them.
func CollectLineItems(rows pgx.Rows) ([]domain.LineItem, error) {
	defer rows.Close()
	var items []domain.LineItem
	for rows.Next() {
		it, err := ScanLineItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func sizeArg(s domain.Size) *string {
	if s == domain.SizeUnset {
		return nil
	}
	v := string(s)
	return &v
}

func addOnsArg(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
