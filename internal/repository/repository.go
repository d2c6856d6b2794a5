// Package repository defines the storage interfaces consumed by the service
// layer. The concrete SQLite implementation lives in repository/sqlite;
// services only ever see these interfaces, which is what makes them testable
// with in-memory mocks.
package repository

import (
	"context"
	"time"

	"github.com/sakif/fortuneai/internal/model"
)

// ListOptions narrows and pages a user's reading history.
// The zero value means "everything, newest first, default page size".
type ListOptions struct {
	ReadingTypeID string // filter to one reading type if non-empty
	FavoriteOnly  bool   // only favorited readings
	Limit         int
	Offset        int
}

// UpdateFields carries a partial update for an owned reading.
// nil means "leave this column untouched" — the repository builds the SET
// clause from the non-nil fields only. Prompt and AIResponse are deliberately
// absent: generated content is immutable after creation.
type UpdateFields struct {
	Title      *string
	Tags       *[]string
	IsFavorite *bool
}

// ReadingRepository persists readings.
//
// OWNERSHIP-SCOPED MUTATIONS:
// Every mutating method takes the acting user's ID and folds it into the
// same WHERE clause as the reading ID. There is never a separate "does this
// reading exist" check followed by a write — that would open a race between
// check and act. The bool result reports whether a row actually matched;
// false means "not found or not yours", and callers must not distinguish
// the two.
type ReadingRepository interface {
	Create(ctx context.Context, reading *model.Reading) error
	GetOwned(ctx context.Context, userID, id string) (*model.Reading, error)
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Reading, error)
	UpdateOwned(ctx context.Context, userID, id string, fields UpdateFields) (bool, error)
	DeleteOwned(ctx context.Context, userID, id string) (bool, error)

	// SetShare atomically writes the full share capability
	// (is_shareable=true, token, expiry) for an owned reading.
	SetShare(ctx context.Context, userID, id, token string, expiresAt time.Time) (bool, error)
	// ClearShare atomically disables sharing AND clears token+expiry, so the
	// "shareable=false but token set" state is never reachable.
	ClearShare(ctx context.Context, userID, id string) (bool, error)
	// GetByShareToken resolves a token with the full gating predicate
	// (shareable AND unexpired) evaluated in the same query. Wrong token,
	// revoked and expired are all the same apperror.ErrNotFound.
	GetByShareToken(ctx context.Context, token string, now time.Time) (*model.Reading, error)
}

// ReadingTypeRepository reads the seeded reading-type catalogue.
type ReadingTypeRepository interface {
	ListActiveTypes(ctx context.Context) ([]model.ReadingType, error)
	GetTypeByID(ctx context.Context, id string) (*model.ReadingType, error)
}

// UserRepository persists user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertGitHubUser inserts on first OAuth login and refreshes profile
	// fields on subsequent logins, keyed by the stable GitHub ID.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	// EnsureUser creates a minimal user row if none exists for id.
	// Idempotent: calling it for an existing user is a no-op. The reading
	// create path relies on this so a valid session can never fail the
	// readings.user_id foreign key.
	EnsureUser(ctx context.Context, id string) error
}
