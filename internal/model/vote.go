package model

import "time"

// PromptVote is a single user's vote on a shared prompt.
// At most one row exists per (UserID, PromptID); Value is +1 or -1.
// A vote of 0 is never stored; it means "remove my vote".
type PromptVote struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PromptID  string    `json:"prompt_id"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VoteOutcome describes what CastVote did to the ledger.
type VoteOutcome string

const (
	VoteCreated  VoteOutcome = "created"
	VoteUpdated  VoteOutcome = "updated"
	VoteRemoved  VoteOutcome = "removed"
	VoteNotFound VoteOutcome = "not_found" // value 0 with no existing vote: a no-op
)

// VoteTally is the per-prompt vote count, computed on read.
type VoteTally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}
