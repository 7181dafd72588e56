package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

var _ repository.VoteRepository = (*DB)(nil)

// GetVote returns the vote userID cast on promptID.
// Returns apperror.ErrNotFound if there is none.
func (db *DB) GetVote(ctx context.Context, userID, promptID string) (*model.PromptVote, error) {
	var v model.PromptVote
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, prompt_id, value, created_at, updated_at
		 FROM prompt_votes WHERE user_id = ? AND prompt_id = ?`,
		userID, promptID,
	).Scan(&v.ID, &v.UserID, &v.PromptID, &v.Value, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("vote", userID+"/"+promptID)
		}
		return nil, fmt.Errorf("sqlite: getting vote %s/%s: %w", userID, promptID, err)
	}
	return &v, nil
}

// InsertVote adds a new vote row.
//
// There is no existence check here on purpose: UNIQUE(user_id, prompt_id)
// decides. If another request inserted the same pair first, the constraint
// fires and we return repository.ErrDuplicateVote for the caller to retry as
// an update.
func (db *DB) InsertVote(ctx context.Context, vote *model.PromptVote) error {
	vote.ID = xid.New().String()
	now := time.Now().UTC()
	vote.CreatedAt = now
	vote.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO prompt_votes (id, user_id, prompt_id, value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		vote.ID, vote.UserID, vote.PromptID, vote.Value, vote.CreatedAt, vote.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: inserting vote %s/%s: %w", vote.UserID, vote.PromptID, repository.ErrDuplicateVote)
		}
		return fmt.Errorf("sqlite: inserting vote %s/%s: %w", vote.UserID, vote.PromptID, err)
	}
	return nil
}

// UpdateVoteValue overwrites the value of an existing vote.
func (db *DB) UpdateVoteValue(ctx context.Context, userID, promptID string, value int) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE prompt_votes SET value = ?, updated_at = ?
		 WHERE user_id = ? AND prompt_id = ?`,
		value, time.Now().UTC(), userID, promptID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating vote %s/%s: %w", userID, promptID, err)
	}
	return requireAffected(result, "vote", userID+"/"+promptID)
}

// DeleteVote removes the vote if present and reports whether a row was deleted.
func (db *DB) DeleteVote(ctx context.Context, userID, promptID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM prompt_votes WHERE user_id = ? AND prompt_id = ?`,
		userID, promptID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting vote %s/%s: %w", userID, promptID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

// Tally counts up- and downvotes for a prompt.
func (db *DB) Tally(ctx context.Context, promptID string) (model.VoteTally, error) {
	var t model.VoteTally
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN value = 1 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN value = -1 THEN 1 ELSE 0 END), 0)
		 FROM prompt_votes WHERE prompt_id = ?`,
		promptID,
	).Scan(&t.Upvotes, &t.Downvotes)
	if err != nil {
		return model.VoteTally{}, fmt.Errorf("sqlite: tallying votes for %s: %w", promptID, err)
	}
	return t, nil
}
