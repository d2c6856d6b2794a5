package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/fortuneai/internal/apperror"
	"github.com/sakif/fortuneai/internal/model"
	"github.com/sakif/fortuneai/internal/repository"
	"github.com/sakif/fortuneai/internal/telemetry"
)

func newTestReadingService() (*ReadingService, *fakeReadingRepo, *fakeUserRepo) {
	readings := newFakeReadingRepo()
	users := newFakeUserRepo()
	svc := NewReadingService(readings, newFakeTypeRepo(), users, testLogger(), telemetry.NewCapture())
	return svc, readings, users
}

func createTestReading(t *testing.T, svc *ReadingService, userID string) *model.Reading {
	t.Helper()
	reading, err := svc.Create(context.Background(), userID, "type-tarot",
		"What does my future hold?", "The cards reveal a journey ahead.", "", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return reading
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate(t *testing.T) {
	svc, _, users := newTestReadingService()

	reading, err := svc.Create(context.Background(), "user-1", "type-tarot",
		"  What does my future hold?  ", "The cards reveal a journey ahead.",
		"My reading", []string{"tarot"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if reading.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if reading.Prompt != "What does my future hold?" {
		t.Errorf("prompt not trimmed: %q", reading.Prompt)
	}
	if reading.Title == nil || *reading.Title != "My reading" {
		t.Errorf("title = %v", reading.Title)
	}

	// the user row must exist afterwards — a valid session may predate the
	// first save
	if _, err := users.GetUserByID(context.Background(), "user-1"); err != nil {
		t.Errorf("user row missing after create: %v", err)
	}
}

func TestCreate_RequiresSignIn(t *testing.T) {
	svc, _, _ := newTestReadingService()

	_, err := svc.Create(context.Background(), "", "type-tarot", "q", "r", "", nil)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Create() with no user error = %v, want ErrUnauthorized", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestReadingService()
	ctx := context.Background()

	tests := []struct {
		name                                  string
		typeID, prompt, response, title       string
		tags                                  []string
	}{
		{name: "missing type", prompt: "q", response: "r"},
		{name: "missing prompt", typeID: "type-tarot", response: "r"},
		{name: "missing response", typeID: "type-tarot", prompt: "q"},
		{name: "whitespace prompt", typeID: "type-tarot", prompt: "   ", response: "r"},
		{name: "prompt too long", typeID: "type-tarot", prompt: strings.Repeat("x", MaxPromptLength+1), response: "r"},
		{name: "response too long", typeID: "type-tarot", prompt: "q", response: strings.Repeat("x", MaxResponseLength+1)},
		{name: "title too long", typeID: "type-tarot", prompt: "q", response: "r", title: strings.Repeat("x", MaxTitleLength+1)},
		{name: "too many tags", typeID: "type-tarot", prompt: "q", response: "r", tags: make([]string, MaxTags+1)},
		{name: "unknown type", typeID: "type-nope", prompt: "q", response: "r"},
		{name: "inactive type", typeID: "type-retired", prompt: "q", response: "r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.tags {
				tt.tags[i] = "tag"
			}
			_, err := svc.Create(ctx, "user-1", tt.typeID, tt.prompt, tt.response, tt.title, tt.tags)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

// =========================================================================
// GET / LIST TESTS
// =========================================================================

func TestGet_OwnershipScoped(t *testing.T) {
	svc, _, _ := newTestReadingService()
	created := createTestReading(t, svc, "owner")

	got, err := svc.Get(context.Background(), "owner", created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("Get() returned wrong reading")
	}

	// another user's reading is NotFound, never Forbidden
	_, err = svc.Get(context.Background(), "intruder", created.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() for non-owner error = %v, want ErrNotFound", err)
	}
	if errors.Is(err, apperror.ErrForbidden) {
		t.Error("Get() for non-owner leaked a Forbidden")
	}
}

func TestList_CachesUntilMutation(t *testing.T) {
	svc, readings, _ := newTestReadingService()
	ctx := context.Background()
	created := createTestReading(t, svc, "user-1")

	callsBefore := readings.listCalls
	if _, err := svc.List(ctx, "user-1", repository.ListOptions{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if _, err := svc.List(ctx, "user-1", repository.ListOptions{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if readings.listCalls != callsBefore+1 {
		t.Errorf("repeat List() hit the repository %d times, want 1", readings.listCalls-callsBefore)
	}

	// a successful mutation invalidates the cache
	title := "renamed"
	if _, err := svc.Update(ctx, "user-1", created.ID, repository.UpdateFields{Title: &title}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := svc.List(ctx, "user-1", repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() after update error = %v", err)
	}
	if readings.listCalls != callsBefore+2 {
		t.Error("List() after mutation served a stale cache entry")
	}
	if len(got) != 1 || got[0].Title == nil || *got[0].Title != "renamed" {
		t.Errorf("List() after update returned stale data: %+v", got)
	}
}

func TestList_DistinctOptionsCachedSeparately(t *testing.T) {
	svc, readings, _ := newTestReadingService()
	ctx := context.Background()
	createTestReading(t, svc, "user-1")

	callsBefore := readings.listCalls
	if _, err := svc.List(ctx, "user-1", repository.ListOptions{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if _, err := svc.List(ctx, "user-1", repository.ListOptions{FavoriteOnly: true}); err != nil {
		t.Fatalf("List(favorites) error = %v", err)
	}
	if readings.listCalls != callsBefore+2 {
		t.Errorf("different options shared a cache entry")
	}
}

// =========================================================================
// UPDATE / DELETE OUTCOME TESTS
// =========================================================================

func TestUpdate_Outcomes(t *testing.T) {
	svc, _, _ := newTestReadingService()
	ctx := context.Background()
	created := createTestReading(t, svc, "owner")

	fav := true
	outcome, err := svc.Update(ctx, "owner", created.ID, repository.UpdateFields{IsFavorite: &fav})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if outcome != OutcomeApplied {
		t.Errorf("Update() outcome = %v, want applied", outcome)
	}

	// non-owner: no error, just the not-found outcome
	outcome, err = svc.Update(ctx, "intruder", created.ID, repository.UpdateFields{IsFavorite: &fav})
	if err != nil {
		t.Fatalf("Update() for non-owner error = %v", err)
	}
	if outcome != OutcomeNotFoundOrForbidden {
		t.Errorf("Update() for non-owner outcome = %v", outcome)
	}

	// the reading is untouched
	got, err := svc.Get(ctx, "owner", created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.IsFavorite {
		t.Error("owner's favorite flag lost")
	}
}

func TestDelete_Outcomes(t *testing.T) {
	svc, _, _ := newTestReadingService()
	ctx := context.Background()
	created := createTestReading(t, svc, "owner")

	outcome, err := svc.Delete(ctx, "intruder", created.ID)
	if err != nil {
		t.Fatalf("Delete() for non-owner error = %v", err)
	}
	if outcome != OutcomeNotFoundOrForbidden {
		t.Errorf("Delete() for non-owner outcome = %v", outcome)
	}

	outcome, err = svc.Delete(ctx, "owner", created.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if outcome != OutcomeApplied {
		t.Errorf("Delete() outcome = %v, want applied", outcome)
	}

	if _, err := svc.Get(ctx, "owner", created.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}
