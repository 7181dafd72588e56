package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/promptcraft/internal/repository"
)

var _ repository.TokenBlacklist = (*DB)(nil)

// RevokeToken records jti as revoked. Revoking the same jti twice is a no-op.
//
// Entries are never removed. A sweep of entries older than the token lifetime
// would be safe, but nothing performs one.
func (db *DB) RevokeToken(ctx context.Context, jti string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO token_blacklist (jti, revoked_at) VALUES (?, ?)`,
		jti, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: revoking token %s: %w", jti, err)
	}
	return nil
}

// IsTokenRevoked reports whether jti is on the blacklist.
// It always reads the primary database, so a logout is visible to the very
// next request.
func (db *DB) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM token_blacklist WHERE jti = ?)`, jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking token %s: %w", jti, err)
	}
	return revoked, nil
}
