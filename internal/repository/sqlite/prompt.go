package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

var _ repository.PromptRepository = (*DB)(nil)

// promptColumns is the SELECT list shared by every prompt query.
//
// The last two columns are the vote tally. They are computed with correlated
// subqueries on every read instead of being stored on the row, so a vote
// change can never leave a stale counter behind.
//
// ROWID ORDERING:
// Lists are ordered by rowid, which SQLite assigns in insertion order. It is
// a stable creation order even when two rows share the same created_at.
const promptColumns = `
	p.id, p.user_id, p.text, p.title, p.intended_use, p.target_audience,
	p.expected_outcome, p.tags, p.is_shared, p.created_at, p.updated_at,
	(SELECT COUNT(*) FROM prompt_votes v WHERE v.prompt_id = p.id AND v.value = 1),
	(SELECT COUNT(*) FROM prompt_votes v WHERE v.prompt_id = p.id AND v.value = -1)`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(s rowScanner) (*model.Prompt, error) {
	var (
		p    model.Prompt
		tags string
	)
	if err := s.Scan(
		&p.ID, &p.UserID, &p.Text, &p.Title, &p.IntendedUse, &p.TargetAudience,
		&p.ExpectedOutcome, &tags, &p.IsShared, &p.CreatedAt, &p.UpdatedAt,
		&p.Upvotes, &p.Downvotes,
	); err != nil {
		return nil, err
	}
	p.Tags = splitTags(tags)
	return &p, nil
}

// CreatePrompt inserts a new prompt, filling in ID and timestamps.
// New prompts are always private; sharing goes through PublishPrompt.
func (db *DB) CreatePrompt(ctx context.Context, prompt *model.Prompt) error {
	prompt.ID = xid.New().String()
	now := time.Now().UTC()
	prompt.CreatedAt = now
	prompt.UpdatedAt = now
	prompt.IsShared = false
	if prompt.Tags == nil {
		prompt.Tags = []string{}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO prompts (id, user_id, text, title, intended_use, target_audience,
		                      expected_outcome, tags, is_shared, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		prompt.ID,
		prompt.UserID,
		prompt.Text,
		prompt.Title,
		prompt.IntendedUse,
		prompt.TargetAudience,
		prompt.ExpectedOutcome,
		joinTags(prompt.Tags),
		prompt.CreatedAt,
		prompt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating prompt: %w", err)
	}
	return nil
}

// GetPrompt retrieves a single prompt with its vote tally.
// Returns apperror.ErrNotFound if the prompt doesn't exist.
func (db *DB) GetPrompt(ctx context.Context, id string) (*model.Prompt, error) {
	p, err := scanPrompt(db.conn.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM prompts p WHERE p.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("prompt", id)
		}
		return nil, fmt.Errorf("sqlite: getting prompt %s: %w", id, err)
	}
	return p, nil
}

// UpdatePrompt writes the editable fields of prompt back to its row.
//
// user_id and is_shared are deliberately absent from the SET list: ownership
// never changes, and sharing is a one-way transition owned by PublishPrompt.
func (db *DB) UpdatePrompt(ctx context.Context, prompt *model.Prompt) error {
	prompt.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE prompts
		 SET text = ?, title = ?, intended_use = ?, target_audience = ?,
		     expected_outcome = ?, tags = ?, updated_at = ?
		 WHERE id = ?`,
		prompt.Text,
		prompt.Title,
		prompt.IntendedUse,
		prompt.TargetAudience,
		prompt.ExpectedOutcome,
		joinTags(prompt.Tags),
		prompt.UpdatedAt,
		prompt.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating prompt %s: %w", prompt.ID, err)
	}
	return requireAffected(result, "prompt", prompt.ID)
}

// DeletePrompt removes a prompt and everything hanging off it.
//
// The foreign keys already cascade, but the child rows are deleted explicitly
// in the same transaction too: PRAGMA foreign_keys is per-connection state,
// and this keeps the cascade correct even on a connection opened without it.
func (db *DB) DeletePrompt(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM prompt_votes WHERE prompt_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting votes of prompt %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM generated_prompts WHERE prompt_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting generations of prompt %s: %w", id, err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting prompt %s: %w", id, err)
		}
		return requireAffected(result, "prompt", id)
	})
}

// PublishPrompt flips is_shared to true. There is no inverse.
func (db *DB) PublishPrompt(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE prompts SET is_shared = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: publishing prompt %s: %w", id, err)
	}
	return requireAffected(result, "prompt", id)
}

// ListPromptsByOwner returns every prompt owned by userID.
// SortOldest lists in creation order; anything else lists newest first.
func (db *DB) ListPromptsByOwner(ctx context.Context, userID string, sort model.PromptSort) ([]model.Prompt, error) {
	order := "DESC"
	if sort == model.SortOldest {
		order = "ASC"
	}

	return db.queryPrompts(ctx,
		`SELECT `+promptColumns+` FROM prompts p WHERE p.user_id = ? ORDER BY p.rowid `+order,
		userID,
	)
}

// ListSharedPrompts returns shared prompts, newest first, narrowed by filter.
//
// SEARCH SEMANTICS:
// Each non-empty filter adds "unicode_lower(column) LIKE %term%" with the
// term lowered the same way in Go. LIKE alone folds only ASCII, so "ÉLÈVES"
// would never match "élèves". The clauses are joined with AND. A NULL column
// never matches.
//
// The WHERE clause is assembled from fixed fragments; user input only ever
// travels as a ? parameter, with its LIKE wildcards escaped.
func (db *DB) ListSharedPrompts(ctx context.Context, filter model.PromptFilter) ([]model.Prompt, error) {
	var (
		clauses = []string{"p.is_shared = 1"}
		args    []any
	)

	addFilter := func(column, term string) {
		if term == "" {
			return
		}
		clauses = append(clauses, unicodeLowerFunc+`(`+column+`) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(term))+"%")
	}
	addFilter("p.tags", filter.Tags)
	addFilter("p.intended_use", filter.IntendedUse)
	addFilter("p.target_audience", filter.TargetAudience)

	query := `SELECT ` + promptColumns + ` FROM prompts p WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY p.rowid DESC`

	return db.queryPrompts(ctx, query, args...)
}

func (db *DB) queryPrompts(ctx context.Context, query string, args ...any) ([]model.Prompt, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing prompts: %w", err)
	}
	defer rows.Close()

	prompts := make([]model.Prompt, 0)
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning prompt row: %w", err)
		}
		prompts = append(prompts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating prompts: %w", err)
	}
	return prompts, nil
}

// requireAffected turns "zero rows affected" into a NotFound error.
func requireAffected(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

// Tags are stored as one comma-joined string so the public search can run a
// plain substring match over all of them at once.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
