package model

import "time"

// User represents a registered account.
//
// Two sign-in paths map onto one row:
//   - email/password: Email + PasswordHash are set, GitHubID is 0
//   - GitHub OAuth:   GitHubID is set, PasswordHash is empty
//
// PasswordHash is never serialized — the json:"-" tag keeps it out of every
// API response no matter which handler marshals the struct.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"githubId,omitempty"` // GitHub's numeric user ID, 0 if password account
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	ImageURL     string    `json:"imageUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
