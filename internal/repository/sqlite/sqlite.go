// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. Perfect for:
// - Single-server deployments (which is most apps, honestly)
// - Development and testing (use ":memory:" for in-memory DB)
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// SCHEMA:
//
//	users             credential store (UNIQUE username, UNIQUE email)
//	prompts           owned by users
//	generated_prompts append-only results, ON DELETE CASCADE from prompts
//	prompt_votes      UNIQUE(user_id, prompt_id), ON DELETE CASCADE from prompts
//	token_blacklist   revoked token ids (jti), never swept
//
// One *DB implements every repository interface; the service layer only sees
// the interfaces from the parent package.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	// The driver registers itself with database/sql as "sqlite" in its init().
	// We also need its Error type to detect constraint violations, so the import
	// is named rather than blank.
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// unicodeLowerFunc is the SQL name of a lower() that folds every script, not
// only ASCII. SQLite's built-in lower() and LIKE leave "É" and "é" distinct.
const unicodeLowerFunc = "unicode_lower"

// Functions registered on the driver apply to connections opened afterwards,
// so this has to run before the first sql.Open.
func init() {
	sqlitedriver.MustRegisterDeterministicScalarFunction(unicodeLowerFunc, 1, unicodeLower)
}

func unicodeLower(_ *sqlitedriver.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/promptcraft.db" → file-based database (persistent)
//   - ":memory:"            → in-memory database (great for tests, lost on close)
//
// ONE CONNECTION:
// SQLite allows a single writer at a time. We cap the pool at one connection so
// writes queue inside database/sql instead of failing with SQLITE_BUSY, and so
// ":memory:" databases are not silently split across several connections (each
// new connection to ":memory:" would be a brand new, empty database).
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Ping verifies the connection actually works.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. The cascades from prompts to
	// votes and generations depend on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is idempotent, so migrate runs on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			gender        TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// tags is a comma-joined list; search uses substring LIKE on it.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS prompts (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			text             TEXT NOT NULL,
			title            TEXT,
			intended_use     TEXT,
			target_audience  TEXT,
			expected_outcome TEXT,
			tags             TEXT NOT NULL DEFAULT '',
			is_shared        INTEGER NOT NULL DEFAULT 0,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_prompts_user_id ON prompts(user_id);
		CREATE INDEX IF NOT EXISTS idx_prompts_is_shared ON prompts(is_shared);
	`)
	if err != nil {
		return fmt.Errorf("creating prompts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS generated_prompts (
			id                     TEXT PRIMARY KEY,
			prompt_id              TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
			generated_text         TEXT NOT NULL DEFAULT '',
			overall_score          INTEGER,
			clarity                INTEGER,
			specificity            INTEGER,
			effectiveness          INTEGER,
			refined_prompt         TEXT,
			improvements_made      TEXT,
			additional_suggestions TEXT,
			prompt_token_count     INTEGER,
			candidates_token_count INTEGER,
			created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_generated_prompts_prompt_id ON generated_prompts(prompt_id);
	`)
	if err != nil {
		return fmt.Errorf("creating generated_prompts table: %w", err)
	}

	// The UNIQUE constraint is what makes one-vote-per-user hold under
	// concurrent requests; the service layer only decides insert vs update.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS prompt_votes (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			prompt_id  TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
			value      INTEGER NOT NULL CHECK (value IN (-1, 1)),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, prompt_id)
		);
		CREATE INDEX IF NOT EXISTS idx_prompt_votes_prompt_id ON prompt_votes(prompt_id);
	`)
	if err != nil {
		return fmt.Errorf("creating prompt_votes table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS token_blacklist (
			jti        TEXT PRIMARY KEY,
			revoked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating token_blacklist table: %w", err)
	}

	return nil
}

// withTx runs fn inside a transaction. The transaction is committed if fn
// returns nil and rolled back otherwise.
//
// Inside fn, use ONLY tx. The pool has a single connection, so touching
// db.conn while the transaction holds it would block forever.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlitedriver.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	// Older driver builds report only the primary result code; fall back to
	// the message SQLite itself produces.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
