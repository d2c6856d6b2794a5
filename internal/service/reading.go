// Package service contains the business logic layer of the application.
//
// The layering follows the usual three-tier shape:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces ownership, orchestrates
//	Repository (data layer)  → reads/writes SQLite
//
// Services accept primitives and return domain errors from internal/apperror;
// they know nothing about HTTP. Every dependency is an interface injected
// through the constructor, so tests swap in mocks without a database.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sakif/fortuneai/internal/apperror"
	"github.com/sakif/fortuneai/internal/model"
	"github.com/sakif/fortuneai/internal/repository"
	"github.com/sakif/fortuneai/internal/telemetry"
)

// Validation constants.
const (
	MaxPromptLength   = 2000
	MaxResponseLength = 20000
	MaxTitleLength    = 200
	MaxTags           = 10
	MaxTagLength      = 50
)

// MutationOutcome is the named result of an ownership-scoped update or
// delete.
//
// OutcomeNotFoundOrForbidden deliberately does not say which of the two it
// was: a mutation against a reading that doesn't exist and one against a
// reading owned by someone else are the same outcome, so the API can never
// be used to probe for other users' reading IDs. Handlers present it as
// success; tests and internal callers can still tell "changed something"
// from "changed nothing".
type MutationOutcome int

const (
	OutcomeApplied MutationOutcome = iota
	OutcomeNotFoundOrForbidden
)

// ReadingService handles the reading lifecycle: create on stream completion,
// owner edits, deletion, and history listing.
type ReadingService struct {
	readings repository.ReadingRepository
	types    repository.ReadingTypeRepository
	users    repository.UserRepository
	logger   *slog.Logger
	recorder telemetry.Recorder

	// Cached list views, keyed per user. Every successful mutation
	// invalidates the owner's entries — an explicit post-condition, not an
	// optimization that may be skipped.
	mu    sync.Mutex
	cache map[string]map[string][]model.Reading
}

func NewReadingService(
	readings repository.ReadingRepository,
	types repository.ReadingTypeRepository,
	users repository.UserRepository,
	logger *slog.Logger,
	recorder telemetry.Recorder,
) *ReadingService {
	return &ReadingService{
		readings: readings,
		types:    types,
		users:    users,
		logger:   logger,
		recorder: recorder,
		cache:    make(map[string]map[string][]model.Reading),
	}
}

// Create persists a completed reading for the authenticated user.
//
// This is the durability step of a reading session: the stream consumer
// calls it exactly once, after the last token has arrived. Requirements:
//   - an authenticated caller (userID non-empty) — ErrUnauthorized otherwise
//   - prompt and response non-empty — ErrValidation otherwise
//   - the reading type must exist and be active — ErrValidation otherwise
//     (a data error, not a not-found: the caller chose the type from the
//     catalogue, so an unknown ID is bad input)
//
// The user row is created if absent. Sessions are issued by the auth layer,
// so a valid session whose user row is missing (first reading ever, or a
// wiped database) must not fail the save.
func (s *ReadingService) Create(
	ctx context.Context,
	userID, readingTypeID, prompt, aiResponse, title string,
	tags []string,
) (*model.Reading, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("please sign in to save readings")
	}

	readingTypeID = strings.TrimSpace(readingTypeID)
	prompt = strings.TrimSpace(prompt)
	aiResponse = strings.TrimSpace(aiResponse)
	title = strings.TrimSpace(title)

	if readingTypeID == "" {
		return nil, apperror.ValidationFailed("readingTypeId", "reading type is required")
	}
	if prompt == "" {
		return nil, apperror.ValidationFailed("prompt", "prompt is required")
	}
	if len(prompt) > MaxPromptLength {
		return nil, apperror.ValidationFailed("prompt",
			fmt.Sprintf("prompt must be %d characters or less", MaxPromptLength))
	}
	if aiResponse == "" {
		return nil, apperror.ValidationFailed("aiResponse", "response text is required")
	}
	if len(aiResponse) > MaxResponseLength {
		return nil, apperror.ValidationFailed("aiResponse",
			fmt.Sprintf("response must be %d characters or less", MaxResponseLength))
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateTags(tags); err != nil {
		return nil, err
	}

	readingType, err := s.types.GetTypeByID(ctx, readingTypeID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("readingTypeId", "reading type does not exist")
		}
		s.recorder.Record(ctx, err, slog.String("op", "create reading"))
		return nil, fmt.Errorf("looking up reading type: %w", err)
	}
	if !readingType.IsActive {
		return nil, apperror.ValidationFailed("readingTypeId", "reading type is not available")
	}

	if err := s.users.EnsureUser(ctx, userID); err != nil {
		s.recorder.Record(ctx, err, slog.String("op", "create reading"))
		return nil, fmt.Errorf("ensuring user record: %w", err)
	}

	reading := &model.Reading{
		UserID:        userID,
		ReadingTypeID: readingTypeID,
		Prompt:        prompt,
		AIResponse:    aiResponse,
		Tags:          tags,
	}
	if title != "" {
		reading.Title = &title
	}

	if err := s.readings.Create(ctx, reading); err != nil {
		s.recorder.Record(ctx, err, slog.String("op", "create reading"))
		return nil, fmt.Errorf("creating reading: %w", err)
	}

	s.InvalidateUser(userID)

	s.logger.Info("reading created",
		slog.String("id", reading.ID),
		slog.String("userID", userID),
		slog.String("type", readingType.Name),
	)

	return reading, nil
}

// Get retrieves one of the caller's readings. Readings owned by other users
// are NotFound, never Forbidden.
func (s *ReadingService) Get(ctx context.Context, userID, id string) (*model.Reading, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("please sign in")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "reading ID is required")
	}
	return s.readings.GetOwned(ctx, userID, id)
}

// List returns the caller's reading history, newest first. Results are
// cached per user until the next mutation.
func (s *ReadingService) List(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Reading, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("please sign in")
	}

	key := fmt.Sprintf("%s|%v|%d|%d", opts.ReadingTypeID, opts.FavoriteOnly, opts.Limit, opts.Offset)
	s.mu.Lock()
	if cached, ok := s.cache[userID][key]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	readings, err := s.readings.ListByUser(ctx, userID, opts)
	if err != nil {
		s.recorder.Record(ctx, err, slog.String("op", "list readings"))
		return nil, fmt.Errorf("listing readings: %w", err)
	}

	s.mu.Lock()
	if s.cache[userID] == nil {
		s.cache[userID] = make(map[string][]model.Reading)
	}
	s.cache[userID][key] = readings
	s.mu.Unlock()

	return readings, nil
}

// Update applies a partial edit (title, tags, favorite) to a reading the
// caller owns. The ownership predicate is part of the single UPDATE
// statement; a mismatch is reported as OutcomeNotFoundOrForbidden with a nil
// error.
func (s *ReadingService) Update(ctx context.Context, userID, id string, fields repository.UpdateFields) (MutationOutcome, error) {
	if userID == "" {
		return OutcomeNotFoundOrForbidden, apperror.Unauthorized("please sign in")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return OutcomeNotFoundOrForbidden, apperror.ValidationFailed("id", "reading ID is required")
	}
	if fields.Title != nil {
		if err := validateTitle(*fields.Title); err != nil {
			return OutcomeNotFoundOrForbidden, err
		}
	}
	if fields.Tags != nil {
		if err := validateTags(*fields.Tags); err != nil {
			return OutcomeNotFoundOrForbidden, err
		}
	}

	applied, err := s.readings.UpdateOwned(ctx, userID, id, fields)
	if err != nil {
		s.recorder.Record(ctx, err, slog.String("op", "update reading"))
		return OutcomeNotFoundOrForbidden, fmt.Errorf("updating reading: %w", err)
	}
	if !applied {
		return OutcomeNotFoundOrForbidden, nil
	}

	s.InvalidateUser(userID)
	s.logger.Info("reading updated", slog.String("id", id), slog.String("userID", userID))
	return OutcomeApplied, nil
}

// Delete removes a reading the caller owns. Irreversible. Same outcome
// semantics as Update.
func (s *ReadingService) Delete(ctx context.Context, userID, id string) (MutationOutcome, error) {
	if userID == "" {
		return OutcomeNotFoundOrForbidden, apperror.Unauthorized("please sign in")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return OutcomeNotFoundOrForbidden, apperror.ValidationFailed("id", "reading ID is required")
	}

	applied, err := s.readings.DeleteOwned(ctx, userID, id)
	if err != nil {
		s.recorder.Record(ctx, err, slog.String("op", "delete reading"))
		return OutcomeNotFoundOrForbidden, fmt.Errorf("deleting reading: %w", err)
	}
	if !applied {
		return OutcomeNotFoundOrForbidden, nil
	}

	s.InvalidateUser(userID)
	s.logger.Info("reading deleted", slog.String("id", id), slog.String("userID", userID))
	return OutcomeApplied, nil
}

// InvalidateUser drops every cached list view for the given user. Called
// after each successful mutation, including share operations from the
// share-link manager.
func (s *ReadingService) InvalidateUser(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

func validateTitle(title string) error {
	if len(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > MaxTags {
		return apperror.ValidationFailed("tags",
			fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return apperror.ValidationFailed("tags", "tags must not be empty")
		}
		if len(tag) > MaxTagLength {
			return apperror.ValidationFailed("tags",
				fmt.Sprintf("tags must be %d characters or less", MaxTagLength))
		}
	}
	return nil
}
