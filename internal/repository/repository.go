// Package repository declares the storage interfaces the service layer depends on.
// The sqlite subpackage implements all of them on a single *sqlite.DB.
package repository

import (
	"context"
	"errors"

	"github.com/sakif/promptcraft/internal/model"
)

// UserRepository is the credential store.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// PromptRepository stores prompts. Read methods fill in the vote tally.
type PromptRepository interface {
	CreatePrompt(ctx context.Context, prompt *model.Prompt) error
	GetPrompt(ctx context.Context, id string) (*model.Prompt, error)
	UpdatePrompt(ctx context.Context, prompt *model.Prompt) error
	DeletePrompt(ctx context.Context, id string) error
	PublishPrompt(ctx context.Context, id string) error
	ListPromptsByOwner(ctx context.Context, userID string, sort model.PromptSort) ([]model.Prompt, error)
	ListSharedPrompts(ctx context.Context, filter model.PromptFilter) ([]model.Prompt, error)
}

// VoteRepository is the voting ledger's storage.
//
// InsertVote must fail with an error matching ErrDuplicateVote when a row
// for (UserID, PromptID) already exists; the uniqueness is enforced by the
// schema, not by a prior SELECT.
type VoteRepository interface {
	GetVote(ctx context.Context, userID, promptID string) (*model.PromptVote, error)
	InsertVote(ctx context.Context, vote *model.PromptVote) error
	UpdateVoteValue(ctx context.Context, userID, promptID string, value int) error
	DeleteVote(ctx context.Context, userID, promptID string) (bool, error)
	Tally(ctx context.Context, promptID string) (model.VoteTally, error)
}

// GenerationRepository stores generation results.
//
// CreateGeneration inserts gen and, when adoptTitle is non-empty, sets the
// prompt's title to it if the prompt still has none, both in one transaction.
type GenerationRepository interface {
	CreateGeneration(ctx context.Context, gen *model.GeneratedPrompt, adoptTitle string) error
	ListGenerations(ctx context.Context, promptID string) ([]model.GeneratedPrompt, error)
}

// TokenBlacklist is the set of revoked token identifiers (jti).
type TokenBlacklist interface {
	RevokeToken(ctx context.Context, jti string) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// ErrDuplicateVote is returned by InsertVote when the (user, prompt) pair
// already has a vote.
var ErrDuplicateVote = errors.New("repository: duplicate vote")
