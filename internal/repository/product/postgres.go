package product

import (
	"context"
	"errors"

	"brewpos/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("product_repo")}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	const q = `
SELECT id::text, name, type, price_cents, availability, COALESCE(image_path, ''), created_at
FROM products
ORDER BY type ASC, name ASC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error("list", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.PriceCents, &p.Availability, &p.ImagePath, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("list rows", zap.Error(err))
		return nil, err
	}
	r.logger.Debug("list", zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	const q = `
SELECT id::text, name, type, price_cents, availability, COALESCE(image_path, ''), created_at
FROM products
WHERE lower(name) = lower($1)
`
	var p domain.Product
	err := r.pool.QueryRow(ctx, q, name).Scan(&p.ID, &p.Name, &p.Type, &p.PriceCents, &p.Availability, &p.ImagePath, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("get not found", zap.String("name", name))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) CountByType(ctx context.Context) ([]domain.CategoryCount, error) {
	const q = `
SELECT type, COUNT(*)
FROM products
GROUP BY type
ORDER BY type ASC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CategoryCount
	for rows.Next() {
		var c domain.CategoryCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (name, type, price_cents, availability, image_path)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
ON CONFLICT (name) DO UPDATE SET
    type = EXCLUDED.type,
    price_cents = EXCLUDED.price_cents,
    availability = EXCLUDED.availability,
    image_path = EXCLUDED.image_path
RETURNING id::text, created_at
`
	availability := product.Availability
	if availability == "" {
		availability = domain.AvailabilityAvailable
	}
	res := product
	res.Availability = availability
	err := r.pool.QueryRow(ctx, q,
		product.Name,
		product.Type,
		product.PriceCents,
		availability,
		product.ImagePath,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.Error("upsert", zap.String("name", product.Name), zap.Error(err))
		return nil, err
	}
	r.logger.Info("upserted", zap.String("name", res.Name), zap.String("id", res.ID))
	return &res, nil
}
