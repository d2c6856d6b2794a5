package model

import "time"

// ReadingType is a named classification of readings (Tarot, Astrology, ...).
// Read-mostly: the catalogue is seeded once at startup and referenced by
// readings, never owned by them. Inactive types stay in the table so that
// historical readings keep a valid foreign key, but they are hidden from the
// catalogue endpoint and rejected for new readings.
type ReadingType struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Category    string    `json:"category"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
