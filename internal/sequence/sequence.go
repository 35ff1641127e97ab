// Package sequence issues human-readable transaction codes.
//
// Numbers come from a counter row that is incremented inside the same
// database transaction that inserts the settled Transaction. A rolled back
// settlement therefore releases its number, and concurrent settlements
// serialize on the row lock so numbers increase in commit order.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DefaultPrefix = "BBT"
	DefaultWidth  = 4
	// CounterTransactions names the counter row used for transaction codes.
	CounterTransactions = "transactions"
)

// Formatter renders sequence numbers as codes like BBT0007.
// Numbers wider than Width are printed in full, never truncated.
type Formatter struct {
	Prefix string
	Width  int
}

// NewFormatter returns a Formatter with the default width.
func NewFormatter(prefix string) Formatter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Formatter{Prefix: prefix, Width: DefaultWidth}
}

func (f Formatter) Format(n int64) string {
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Width, n)
}

// Parse extracts the number from a code produced by Format.
func (f Formatter) Parse(code string) (int64, error) {
	if !strings.HasPrefix(code, f.Prefix) {
		return 0, fmt.Errorf("code %q: missing prefix %q", code, f.Prefix)
	}
	digits := code[len(f.Prefix):]
	if len(digits) < f.Width {
		return 0, fmt.Errorf("code %q: too short", code)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("code %q: invalid number", code)
	}
	return n, nil
}

// Querier is satisfied by pgx.Tx and *pgxpool.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Counter is a named Postgres counter.
type Counter struct {
	pool *pgxpool.Pool
	name string
}

func NewPostgres(pool *pgxpool.Pool, name string) *Counter {
	if name == "" {
		name = CounterTransactions
	}
	return &Counter{pool: pool, name: name}
}

// Reserve increments the counter through q and returns the new value.
// q must be the settlement transaction; the row stays locked until it ends.
func (c *Counter) Reserve(ctx context.Context, q Querier) (int64, error) {
	const stmt = `
INSERT INTO transaction_counters (name, value)
VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET value = transaction_counters.value + 1
RETURNING value
`
	var n int64
	if err := q.QueryRow(ctx, stmt, c.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("reserve %s: %w", c.name, err)
	}
	return n, nil
}

// Peek returns the number the next Reserve would produce if nobody settles first.
func (c *Counter) Peek(ctx context.Context) (int64, error) {
	const q = `
SELECT COALESCE((SELECT value FROM transaction_counters WHERE name = $1), 0) + 1
`
	var n int64
	if err := c.pool.QueryRow(ctx, q, c.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("peek %s: %w", c.name, err)
	}
	return n, nil
}
