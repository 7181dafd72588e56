// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Prompt is a user-authored text prompt plus its descriptive metadata.
//
// NULLABLE COLUMNS AS POINTERS:
// Title, IntendedUse, TargetAudience and ExpectedOutcome are optional. A *string
// distinguishes "never set" (nil → JSON null) from "set to empty", and maps
// directly onto a NULL column when scanned by database/sql.
//
// OWNERSHIP:
// UserID is written once at creation and never updated. Every access check
// in the service layer compares it against the acting user.
//
// Upvotes and Downvotes are not columns: the repository computes them with
// COUNT subqueries every time a prompt is read.
type Prompt struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Text            string    `json:"text"`
	Title           *string   `json:"title"`
	IntendedUse     *string   `json:"intended_use"`
	TargetAudience  *string   `json:"target_audience"`
	ExpectedOutcome *string   `json:"expected_outcome"`
	Tags            []string  `json:"tags"`
	IsShared        bool      `json:"is_shared"`
	Upvotes         int       `json:"upvotes"`
	Downvotes       int       `json:"downvotes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasTitle reports whether the prompt carries a non-empty title.
func (p *Prompt) HasTitle() bool {
	return p.Title != nil && *p.Title != ""
}

// PromptSort selects the ordering of a user's own prompt list.
type PromptSort string

const (
	SortNewest PromptSort = "newest"
	SortOldest PromptSort = "oldest"
)

// PromptFilter holds the optional search terms for public prompts.
// Empty fields are ignored; non-empty fields are combined with AND.
type PromptFilter struct {
	Tags           string
	IntendedUse    string
	TargetAudience string
}
