package transaction

import (
	"context"
	"errors"
	"fmt"

	"brewpos/internal/domain"
	"brewpos/internal/repository/cart"
	"brewpos/internal/repository/pgtx"
	"brewpos/internal/sequence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	constraintCode        = "transactions_code_key"
	constraintNumber      = "transactions_number_key"
	constraintIdempotency = "transactions_session_idempotency_key"
)

const columns = `id::text, code, number, session_id, COALESCE(idempotency_key, ''), payment_method, total_cents,
       amount_tendered_cents, change_cents, cashier_name, status, created_at`

type postgresRepo struct {
	pool    *pgxpool.Pool
	counter *sequence.Counter
	codes   sequence.Formatter
	logger  *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, counter *sequence.Counter, codes sequence.Formatter, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, counter: counter, codes: codes, logger: logger.Named("transaction_repo")}
}

func (r *postgresRepo) Settle(ctx context.Context, in SettleInput, build BuildFunc) (*domain.Settlement, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, pgtx.Classify(err)
	}
	defer tx.Rollback(ctx)

	if err := pgtx.SetLockTimeout(ctx, tx, in.LockTimeout); err != nil {
		return nil, err
	}
	if err := pgtx.LockSession(ctx, tx, in.SessionID); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		prev, items, err := r.findByKey(ctx, tx, in.SessionID, in.IdempotencyKey)
		switch {
		case err == nil:
			r.logger.Info("replayed", zap.String("session", in.SessionID), zap.String("code", prev.Code))
			return &domain.Settlement{Transaction: *prev, Items: items, Replayed: true}, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, pgtx.Classify(err)
		}
	}

	rows, err := tx.Query(ctx, `SELECT `+cart.Columns+`
FROM line_items
WHERE session_id = $1 AND status = 'Pending'
ORDER BY position ASC
FOR UPDATE`, in.SessionID)
	if err != nil {
		return nil, pgtx.Classify(err)
	}
	items, err := cart.CollectLineItems(rows)
	if err != nil {
		return nil, pgtx.Classify(err)
	}

	draft, err := build(items)
	if err != nil {
		return nil, err
	}
	if draft.Items != nil {
		if len(draft.Items) != len(items) {
			return nil, fmt.Errorf("%w: priced %d of %d items", domain.ErrCommitConflict, len(draft.Items), len(items))
		}
		items = draft.Items
	}

	number, err := r.counter.Reserve(ctx, tx)
	if err != nil {
		return nil, pgtx.Classify(err)
	}

	t := domain.Transaction{
		Code:                r.codes.Format(number),
		Number:              number,
		SessionID:           in.SessionID,
		IdempotencyKey:      in.IdempotencyKey,
		PaymentMethod:       draft.PaymentMethod,
		TotalCents:          draft.TotalCents,
		AmountTenderedCents: draft.AmountTenderedCents,
		ChangeCents:         draft.ChangeCents,
		CashierName:         in.CashierName,
		Status:              domain.TransactionNormal,
	}
	if in.OnReserved != nil {
		in.OnReserved(t.Code)
	}
	err = tx.QueryRow(ctx, `
INSERT INTO transactions (number, code, session_id, idempotency_key, payment_method, total_cents,
                          amount_tendered_cents, change_cents, cashier_name, status)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, 'Normal')
RETURNING id::text, created_at
`,
		t.Number,
		t.Code,
		t.SessionID,
		t.IdempotencyKey,
		t.PaymentMethod,
		t.TotalCents,
		t.AmountTenderedCents,
		t.ChangeCents,
		t.CashierName,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, r.insertError(err, t.Code)
	}

	ids := make([]string, len(items))
	units := make([]int64, len(items))
	totals := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
		units[i] = it.UnitPriceCents
		totals[i] = it.TotalCents
	}
	cmd, err := tx.Exec(ctx, `
UPDATE line_items AS li
SET status = 'Confirmed', transaction_id = $1, unit_price_cents = p.unit, total_cents = p.total, updated_at = now()
FROM unnest($2::uuid[], $3::bigint[], $4::bigint[]) AS p(id, unit, total)
WHERE li.id = p.id AND li.status = 'Pending'
`, t.ID, ids, units, totals)
	if err != nil {
		return nil, pgtx.Classify(err)
	}
	if cmd.RowsAffected() != int64(len(items)) {
		return nil, fmt.Errorf("%w: confirmed %d of %d items", domain.ErrCommitConflict, cmd.RowsAffected(), len(items))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, r.insertError(err, t.Code)
	}

	for i := range items {
		items[i].Status = domain.LineItemConfirmed
		items[i].TransactionID = &t.ID
	}
	r.logger.Info("settled",
		zap.String("session", in.SessionID),
		zap.String("code", t.Code),
		zap.Int("items", len(items)),
		zap.Int64("total_cents", t.TotalCents),
	)
	return &domain.Settlement{Transaction: t, Items: items}, nil
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.Transaction, []domain.LineItem, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM transactions WHERE code = $1`, code))
	if err != nil {
		return nil, nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+cart.Columns+`
FROM line_items
WHERE transaction_id = $1
ORDER BY position ASC`, t.ID)
	if err != nil {
		return nil, nil, err
	}
	items, err := cart.CollectLineItems(rows)
	if err != nil {
		return nil, nil, err
	}
	return t, items, nil
}

func (r *postgresRepo) ListRecent(ctx context.Context, limit int, before int64) ([]domain.Settlement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+`
FROM transactions
WHERE $1::bigint <= 0 OR number < $1::bigint
ORDER BY number DESC
LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out []domain.Settlement
		ids []string
		pos = map[string]int{}
	)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		pos[t.ID] = len(out)
		ids = append(ids, t.ID)
		out = append(out, domain.Settlement{Transaction: *t, Items: []domain.LineItem{}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	itemRows, err := r.pool.Query(ctx, `SELECT `+cart.Columns+`
FROM line_items
WHERE transaction_id = ANY($1::uuid[])
ORDER BY position ASC`, ids)
	if err != nil {
		return nil, err
	}
	items, err := cart.CollectLineItems(itemRows)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.TransactionID == nil {
			continue
		}
		if i, ok := pos[*it.TransactionID]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}
	return out, nil
}

func (r *postgresRepo) findByKey(ctx context.Context, tx pgx.Tx, sessionID, key string) (*domain.Transaction, []domain.LineItem, error) {
	t, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+columns+`
FROM transactions
WHERE session_id = $1 AND idempotency_key = $2`, sessionID, key))
	if err != nil {
		return nil, nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+cart.Columns+`
FROM line_items
WHERE transaction_id = $1
ORDER BY position ASC`, t.ID)
	if err != nil {
		return nil, nil, err
	}
	items, err := cart.CollectLineItems(rows)
	if err != nil {
		return nil, nil, err
	}
	return t, items, nil
}

func (r *postgresRepo) insertError(err error, code string) error {
	if constraint, ok := pgtx.UniqueViolation(err); ok {
		switch constraint {
		case constraintCode, constraintNumber:
			r.logger.Warn("code conflict", zap.String("code", code))
			return fmt.Errorf("%w: %s", domain.ErrCodeConflict, code)
		case constraintIdempotency:
			return fmt.Errorf("%w: idempotency key already settled", domain.ErrCommitConflict)
		}
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, constraint)
	}
	return pgtx.Classify(err)
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID,
		&t.Code,
		&t.Number,
		&t.SessionID,
		&t.IdempotencyKey,
		&t.PaymentMethod,
		&t.TotalCents,
		&t.AmountTenderedCents,
		&t.ChangeCents,
		&t.CashierName,
		&t.Status,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
