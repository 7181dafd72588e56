// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Username and Email are both UNIQUE in the database. PasswordHash holds the
// full bcrypt output (salt and cost included) and is tagged `json:"-"` so it
// can never leak into an API response, no matter which handler encodes a User.
//
// Gender is a free-form label; we store whatever the user typed.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Gender       string    `json:"gender"`
	CreatedAt    time.Time `json:"created_at"`
}
