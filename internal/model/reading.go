// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — plain values with struct tags
// controlling their JSON shape, no behaviour attached.
package model

import "time"

// Reading is the central entity: one question asked by one user, paired with
// the AI-generated response, under a reading type.
//
// NULLABLE FIELDS:
// Title, Tags, ShareToken and ShareExpiresAt are optional in the database.
// We model optional strings/times as pointers so that "absent" and "empty"
// are distinguishable — a reading that was never shared has ShareToken == nil,
// not ShareToken == "".
//
// SHARING FIELDS:
// (IsShareable, ShareToken, ShareExpiresAt) together form the share
// capability. A reading is publicly visible through its token only while
// IsShareable is true AND ShareExpiresAt is in the future. A stale token
// left over from a previous share round is harmless: the gating predicate,
// not token presence, decides visibility.
type Reading struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	ReadingTypeID string     `json:"readingTypeId"`
	Prompt        string     `json:"prompt"`
	AIResponse    string     `json:"aiResponse"`
	Title         *string    `json:"title"`
	Tags          []string   `json:"tags"`
	IsFavorite    bool       `json:"isFavorite"`
	IsShareable   bool       `json:"isShareable"`
	ShareToken    *string    `json:"shareToken,omitempty"`
	ShareExpiresAt *time.Time `json:"shareExpiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// SharedReading is the public-safe projection of a Reading returned by the
// share endpoint. It deliberately excludes the owner's identity, the
// favorite flag, and all sharing metadata — a token holder learns nothing
// beyond the reading content itself.
type SharedReading struct {
	ID         string    `json:"id"`
	Title      *string   `json:"title"`
	Prompt     string    `json:"prompt"`
	AIResponse string    `json:"aiResponse"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Public returns the share projection of r.
func (r *Reading) Public() *SharedReading {
	return &SharedReading{
		ID:         r.ID,
		Title:      r.Title,
		Prompt:     r.Prompt,
		AIResponse: r.AIResponse,
		Tags:       r.Tags,
		CreatedAt:  r.CreatedAt,
	}
}
