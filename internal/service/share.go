package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/fortuneai/internal/apperror"
	"github.com/sakif/fortuneai/internal/model"
	"github.com/sakif/fortuneai/internal/repository"
	"github.com/sakif/fortuneai/internal/telemetry"
)

// shareTTL is how long an issued share link stays valid.
const shareTTL = 30 * 24 * time.Hour

// Invalidator lets the share manager invalidate another service's cached
// views without depending on its concrete type. ReadingService implements it.
type Invalidator interface {
	InvalidateUser(userID string)
}

// ShareLink is the result of issuing a share link.
type ShareLink struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	URL       string    `json:"shareUrl"`
}

// ShareService manages the share capability of a reading: the
// (isShareable, shareToken, shareExpiresAt) tuple.
//
// A reading moves between three states:
//
//	Unshared — shareable=false, token cleared
//	Active   — shareable=true, token set, expiry in the future
//	Expired  — shareable=true, token set, expiry passed
//
// Expired is never cleaned up by a background job; the lookup predicate
// simply treats it as Unshared. IssueLink moves any state to Active with a
// fresh token; RevokeLink moves any state to Unshared.
type ShareService struct {
	readings repository.ReadingRepository
	cache    Invalidator
	baseURL  string
	logger   *slog.Logger
	recorder telemetry.Recorder

	// now is replaceable in tests to drive expiry across the 30-day
	// boundary without sleeping.
	now func() time.Time
}

func NewShareService(
	readings repository.ReadingRepository,
	cache Invalidator,
	baseURL string,
	logger *slog.Logger,
	recorder telemetry.Recorder,
) *ShareService {
	return &ShareService{
		readings: readings,
		cache:    cache,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// IssueLink generates a share token for a reading the caller owns and
// activates sharing for the next 30 days. All three share fields are
// written atomically by the repository.
//
// The token is a version-4 UUID — 122 bits from crypto/rand, far beyond any
// guessable space. The schema still enforces uniqueness; in the absurd event
// of a collision the repository returns ErrConflict and the caller may
// simply retry. Nothing is ever overwritten.
func (s *ShareService) IssueLink(ctx context.Context, userID, readingID string) (*ShareLink, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("please sign in")
	}
	readingID = strings.TrimSpace(readingID)
	if readingID == "" {
		return nil, apperror.ValidationFailed("id", "reading ID is required")
	}

	token := uuid.NewString()
	expiresAt := s.now().Add(shareTTL)

	applied, err := s.readings.SetShare(ctx, userID, readingID, token, expiresAt)
	if err != nil {
		s.recorder.Record(ctx, err, slog.String("op", "issue share link"))
		return nil, fmt.Errorf("issuing share link: %w", err)
	}
	if !applied {
		// Not the caller's reading, or no such reading. One answer for both.
		return nil, apperror.NotFound("reading", readingID)
	}

	s.cache.InvalidateUser(userID)
	s.logger.Info("share link issued",
		slog.String("readingID", readingID),
		slog.String("userID", userID),
		slog.Time("expiresAt", expiresAt),
	)

	return &ShareLink{
		Token:     token,
		ExpiresAt: expiresAt,
		URL:       s.baseURL + "/share/" + token,
	}, nil
}

// RevokeLink disables sharing for a reading the caller owns. The token and
// expiry are cleared together with the flag, so a revoked reading holds no
// stale token. Revoking an unshared reading is a valid no-op (still
// OutcomeApplied — the row matched and was written).
func (s *ShareService) RevokeLink(ctx context.Context, userID, readingID string) (MutationOutcome, error) {
	if userID == "" {
		return OutcomeNotFoundOrForbidden, apperror.Unauthorized("please sign in")
	}
	readingID = strings.TrimSpace(readingID)
	if readingID == "" {
		return OutcomeNotFoundOrForbidden, apperror.ValidationFailed("id", "reading ID is required")
	}

	applied, err := s.readings.ClearShare(ctx, userID, readingID)
	if err != nil {
		s.recorder.Record(ctx, err, slog.String("op", "revoke share link"))
		return OutcomeNotFoundOrForbidden, fmt.Errorf("revoking share link: %w", err)
	}
	if !applied {
		return OutcomeNotFoundOrForbidden, nil
	}

	s.cache.InvalidateUser(userID)
	s.logger.Info("share link revoked",
		slog.String("readingID", readingID),
		slog.String("userID", userID),
	)
	return OutcomeApplied, nil
}

// PublicLookup resolves a share token with no identity check — possession of
// a valid token is the entire authorization. Returns the public-safe
// projection only.
//
// Wrong token, revoked link and expired link all come back as the same
// NotFound; the response must not reveal which it was.
func (s *ShareService) PublicLookup(ctx context.Context, token string) (*model.SharedReading, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.NotFound("shared reading", token)
	}

	reading, err := s.readings.GetByShareToken(ctx, token, s.now())
	if err != nil {
		return nil, err
	}
	return reading.Public(), nil
}
