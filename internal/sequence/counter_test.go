package sequence

import (
	"context"
	"os"
	"testing"

	"brewpos/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestCounter_ReserveAndPeek(t *testing.T) {
	ctx := context.Background()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer pool.Close()
	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	c := NewPostgres(pool, "counter_test")
	if _, err := pool.Exec(ctx, `DELETE FROM transaction_counters WHERE name = $1`, "counter_test"); err != nil {
		t.Fatalf("reset counter: %v", err)
	}

	if n, err := c.Peek(ctx); err != nil || n != 1 {
		t.Fatalf("expected peek 1 on a fresh counter, got %d (%v)", n, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	n, err := c.Reserve(ctx, tx)
	if err != nil || n != 1 {
		t.Fatalf("expected reserve 1, got %d (%v)", n, err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if n, _ := c.Peek(ctx); n != 1 {
		t.Fatalf("rolled back reservation must not burn a number, peek=%d", n)
	}

	tx, err = pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := c.Reserve(ctx, tx); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if n, _ := c.Peek(ctx); n != 2 {
		t.Fatalf("expected peek 2 after commit, got %d", n)
	}
}
