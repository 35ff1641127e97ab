package receipt

import (
	"context"

	"brewpos/internal/domain"
	"brewpos/internal/metrics"
	"go.uber.org/zap"
)

// Printer renders receipts through the cache.
type Printer struct {
	renderer *Renderer
	cache    *Cache
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewPrinter(renderer *Renderer, cache *Cache, m *metrics.Metrics, logger *zap.Logger) *Printer {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Printer{renderer: renderer, cache: cache, metrics: m, logger: logger.Named("receipt")}
}

// Print returns the PNG receipt for in. Cache failures fall back to rendering.
func (p *Printer) Print(ctx context.Context, in Input) ([]byte, error) {
	key := Key(in.Transaction.ID, in.Cashier, in.Date, in.Time)
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		p.metrics.ReceiptsRendered.WithLabelValues("hit").Inc()
		return data, nil
	}

	data, err = p.renderer.Render(in)
	if err != nil {
		return nil, err
	}
	p.metrics.ReceiptsRendered.WithLabelValues("miss").Inc()
	if err := p.cache.Set(ctx, key, data); err != nil {
		p.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}

// Forget drops cached receipts of a transaction whose items changed.
func (p *Printer) Forget(ctx context.Context, txID string) {
	if _, err := p.cache.Invalidate(ctx, txID); err != nil {
		p.logger.Warn("cache invalidate failed", zap.String("transaction", txID), zap.Error(err))
	}
}

// Printable returns the items a receipt lists: confirmed lines, voids left off.
func Printable(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		if it.Status == domain.LineItemConfirmed {
			out = append(out, it)
		}
	}
	return out
}
