package manager

import (
	"context"
	"errors"
	"strings"

	"brewpos/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("manager_repo")}
}

func (r *postgresRepo) GetByUsername(ctx context.Context, username string) (*domain.Manager, error) {
	const q = `
SELECT id::text, username, full_name, password_hash, created_at
FROM managers
WHERE lower(username) = lower($1)
LIMIT 1
`
	return r.scanManager(r.pool.QueryRow(ctx, q, strings.TrimSpace(username)))
}

func (r *postgresRepo) Upsert(ctx context.Context, m domain.Manager) (*domain.Manager, error) {
	const q = `
INSERT INTO managers (username, full_name, password_hash)
VALUES ($1, $2, $3)
ON CONFLICT (username) DO UPDATE SET
    full_name = EXCLUDED.full_name,
    password_hash = EXCLUDED.password_hash
RETURNING id::text, username, full_name, password_hash, created_at
`
	return r.scanManager(r.pool.QueryRow(ctx, q, strings.TrimSpace(m.Username), m.FullName, m.PasswordHash))
}

func (r *postgresRepo) scanManager(row pgx.Row) (*domain.Manager, error) {
	var m domain.Manager
	err := row.Scan(&m.ID, &m.Username, &m.FullName, &m.PasswordHash, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Error("scan", zap.Error(err))
		return nil, err
	}
	return &m, nil
}
