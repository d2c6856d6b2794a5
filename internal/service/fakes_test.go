package service

// In-memory fakes for the repository interfaces, shared by the service
// tests. Hand-written fakes (rather than a mock framework) keep the test
// behavior visible at a glance and make it trivial to inject failures.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sakif/fortuneai/internal/apperror"
	"github.com/sakif/fortuneai/internal/model"
	"github.com/sakif/fortuneai/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =========================================================================
// FAKE READING REPOSITORY
// =========================================================================

type fakeReadingRepo struct {
	readings map[string]*model.Reading
	order    []string // IDs in creation order
	nextID   int

	listCalls int // for cache assertions

	// set to inject failures
	createErr error
	listErr   error
}

func newFakeReadingRepo() *fakeReadingRepo {
	return &fakeReadingRepo{readings: make(map[string]*model.Reading)}
}

func (f *fakeReadingRepo) Create(_ context.Context, reading *model.Reading) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	reading.ID = fmt.Sprintf("reading-%d", f.nextID)
	now := time.Now()
	reading.CreatedAt = now
	reading.UpdatedAt = now
	stored := *reading
	f.readings[reading.ID] = &stored
	f.order = append(f.order, reading.ID)
	return nil
}

func (f *fakeReadingRepo) GetOwned(_ context.Context, userID, id string) (*model.Reading, error) {
	r, ok := f.readings[id]
	if !ok || r.UserID != userID {
		return nil, apperror.NotFound("reading", id)
	}
	copied := *r
	return &copied, nil
}

func (f *fakeReadingRepo) ListByUser(_ context.Context, userID string, opts repository.ListOptions) ([]model.Reading, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Reading
	// newest first = reverse creation order
	for i := len(f.order) - 1; i >= 0; i-- {
		r := f.readings[f.order[i]]
		if r.UserID != userID {
			continue
		}
		if opts.ReadingTypeID != "" && r.ReadingTypeID != opts.ReadingTypeID {
			continue
		}
		if opts.FavoriteOnly && !r.IsFavorite {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeReadingRepo) UpdateOwned(_ context.Context, userID, id string, fields repository.UpdateFields) (bool, error) {
	r, ok := f.readings[id]
	if !ok || r.UserID != userID {
		return false, nil
	}
	if fields.Title != nil {
		title := *fields.Title
		r.Title = &title
	}
	if fields.Tags != nil {
		r.Tags = append([]string(nil), (*fields.Tags)...)
	}
	if fields.IsFavorite != nil {
		r.IsFavorite = *fields.IsFavorite
	}
	r.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeReadingRepo) DeleteOwned(_ context.Context, userID, id string) (bool, error) {
	r, ok := f.readings[id]
	if !ok || r.UserID != userID {
		return false, nil
	}
	delete(f.readings, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (f *fakeReadingRepo) SetShare(_ context.Context, userID, id, token string, expiresAt time.Time) (bool, error) {
	for oid, other := range f.readings {
		if oid != id && other.ShareToken != nil && *other.ShareToken == token {
			return false, apperror.Conflict("share token", id)
		}
	}
	r, ok := f.readings[id]
	if !ok || r.UserID != userID {
		return false, nil
	}
	r.IsShareable = true
	r.ShareToken = &token
	exp := expiresAt
	r.ShareExpiresAt = &exp
	return true, nil
}

func (f *fakeReadingRepo) ClearShare(_ context.Context, userID, id string) (bool, error) {
	r, ok := f.readings[id]
	if !ok || r.UserID != userID {
		return false, nil
	}
	r.IsShareable = false
	r.ShareToken = nil
	r.ShareExpiresAt = nil
	return true, nil
}

func (f *fakeReadingRepo) GetByShareToken(_ context.Context, token string, now time.Time) (*model.Reading, error) {
	for _, r := range f.readings {
		if r.ShareToken != nil && *r.ShareToken == token &&
			r.IsShareable && r.ShareExpiresAt != nil && r.ShareExpiresAt.After(now) {
			copied := *r
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("shared reading", token)
}

// =========================================================================
// FAKE READING TYPE REPOSITORY
// =========================================================================

type fakeTypeRepo struct {
	types map[string]*model.ReadingType
}

func newFakeTypeRepo() *fakeTypeRepo {
	return &fakeTypeRepo{
		types: map[string]*model.ReadingType{
			"type-tarot": {
				ID: "type-tarot", Name: "Tarot Card Reading",
				Icon: "🃏", Category: "divination", IsActive: true,
			},
			"type-retired": {
				ID: "type-retired", Name: "Tea Leaf Reading",
				Icon: "🍵", Category: "divination", IsActive: false,
			},
		},
	}
}

func (f *fakeTypeRepo) ListActiveTypes(context.Context) ([]model.ReadingType, error) {
	var out []model.ReadingType
	for _, rt := range f.types {
		if rt.IsActive {
			out = append(out, *rt)
		}
	}
	return out, nil
}

func (f *fakeTypeRepo) GetTypeByID(_ context.Context, id string) (*model.ReadingType, error) {
	rt, ok := f.types[id]
	if !ok {
		return nil, apperror.NotFound("reading type", id)
	}
	copied := *rt
	return &copied, nil
}

// =========================================================================
// FAKE USER REPOSITORY
// =========================================================================

type fakeUserRepo struct {
	users   map[string]*model.User // by internal ID
	byEmail map[string]*model.User
	byGHID  map[int64]*model.User
	nextID  int

	ensureErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:   make(map[string]*model.User),
		byEmail: make(map[string]*model.User),
		byGHID:  make(map[int64]*model.User),
	}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if _, exists := f.byEmail[user.Email]; exists && user.Email != "" {
		return apperror.Conflict("user", user.Email)
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	f.users[user.ID] = &copied
	if user.Email != "" {
		f.byEmail[user.Email] = &copied
	}
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) UpsertGitHubUser(_ context.Context, user *model.User) error {
	if existing, ok := f.byGHID[user.GitHubID]; ok {
		existing.Email = user.Email
		existing.FirstName = user.FirstName
		existing.LastName = user.LastName
		existing.ImageURL = user.ImageURL
		existing.UpdatedAt = time.Now()
		*user = *existing
		return nil
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	f.users[user.ID] = &copied
	f.byGHID[user.GitHubID] = &copied
	return nil
}

func (f *fakeUserRepo) EnsureUser(_ context.Context, id string) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	if _, ok := f.users[id]; !ok {
		now := time.Now()
		f.users[id] = &model.User{ID: id, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}
