package postgres

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// ImportLocker serializes imports per (company, period) with PostgreSQL
// advisory locks, so concurrent imports for the same key cannot race
// each other's absence pass. Different keys proceed independently.
type ImportLocker struct {
	db *DB
}

// NewImportLocker creates a new ImportLocker.
func NewImportLocker(db *DB) *ImportLocker {
	return &ImportLocker{db: db}
}

// WithImportLock runs fn while holding the advisory lock for the given
// company and period. The lock is session-scoped and held on a dedicated
// connection for the duration of fn, surviving fn's own transactions.
func (l *ImportLocker) WithImportLock(ctx context.Context, companyID shared.ID, periodLabel string, fn func(context.Context) error) error {
	key := lockKey(companyID, periodLabel)

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire lock connection: %w", storeError(err))
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		return fmt.Errorf("failed to acquire import lock: %w", storeError(err))
	}
	defer func() {
		// Unlock with a background context so a canceled import still
		// releases the lock. Closing the connection would release it
		// too; the explicit unlock keeps the pooled connection clean.
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
	}()

	return fn(ctx)
}

// lockKey derives the 64-bit advisory lock key for (company, period).
func lockKey(companyID shared.ID, periodLabel string) int64 {
	h := fnv.New64a()
	h.Write([]byte(companyID.String()))
	h.Write([]byte{0})
	h.Write([]byte(periodLabel))
	return int64(h.Sum64())
}
