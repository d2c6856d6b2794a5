package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	sqlite3 "modernc.org/sqlite"

	"github.com/sakif/fortuneai/internal/apperror"
	"github.com/sakif/fortuneai/internal/model"
	"github.com/sakif/fortuneai/internal/repository"
)

// compile-time check that *DB implements repository.ReadingRepository
var _ repository.ReadingRepository = (*DB)(nil)

// SQLITE_CONSTRAINT_UNIQUE extended result code. Checked by type+code rather
// than matching on the error message.
const sqliteConstraintUnique = 2067

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	return errors.As(err, &serr) && serr.Code() == sqliteConstraintUnique
}

// encodeTags serializes tags as a JSON array for the TEXT column.
// SQLite has no array type; NULL means "no tags were ever set".
func encodeTags(tags []string) (any, error) {
	if tags == nil {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw sql.NullString) ([]string, error) {
	if !raw.Valid {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw.String), &tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return tags, nil
}

const readingColumns = `id, user_id, reading_type_id, prompt, ai_response,
	title, tags, is_favorite, is_shareable, share_token, share_expires_at,
	created_at, updated_at`

// scanReading reads one readings row into a model.Reading. Works with both
// *sql.Row and *sql.Rows via the shared Scan signature.
func scanReading(scan func(dest ...any) error) (*model.Reading, error) {
	var (
		r         model.Reading
		title     sql.NullString
		tags      sql.NullString
		token     sql.NullString
		expiresAt sql.NullTime
	)
	err := scan(
		&r.ID, &r.UserID, &r.ReadingTypeID, &r.Prompt, &r.AIResponse,
		&title, &tags, &r.IsFavorite, &r.IsShareable, &token, &expiresAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if title.Valid {
		r.Title = &title.String
	}
	if token.Valid {
		r.ShareToken = &token.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		r.ShareExpiresAt = &t
	}
	r.Tags, err = decodeTags(tags)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a new reading owned by reading.UserID, generating the ID
// and timestamps. The caller's struct is updated in place.
func (db *DB) Create(ctx context.Context, reading *model.Reading) error {
	reading.ID = xid.New().String()
	now := time.Now()
	reading.CreatedAt = now
	reading.UpdatedAt = now

	tags, err := encodeTags(reading.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: creating reading: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO readings
			(id, user_id, reading_type_id, prompt, ai_response, title, tags,
			 is_favorite, is_shareable, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		reading.ID,
		reading.UserID,
		reading.ReadingTypeID,
		reading.Prompt,
		reading.AIResponse,
		reading.Title,
		tags,
		reading.CreatedAt,
		reading.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating reading: %w", err)
	}

	return nil
}

// GetOwned retrieves a reading only if it belongs to userID. A reading that
// exists but belongs to someone else is indistinguishable from one that
// doesn't exist — both are NotFound.
func (db *DB) GetOwned(ctx context.Context, userID, id string) (*model.Reading, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+readingColumns+` FROM readings WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	reading, err := scanReading(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("reading", id)
		}
		return nil, fmt.Errorf("sqlite: getting reading %s: %w", id, err)
	}
	return reading, nil
}

// ListByUser returns a user's readings newest-first, optionally narrowed to
// one reading type and/or favorites only.
func (db *DB) ListByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Reading, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	// Build the WHERE clause from the options. The predicate order matches
	// the composite indexes (user_id first).
	where := []string{"user_id = ?"}
	args := []any{userID}
	if opts.ReadingTypeID != "" {
		where = append(where, "reading_type_id = ?")
		args = append(args, opts.ReadingTypeID)
	}
	if opts.FavoriteOnly {
		where = append(where, "is_favorite = 1")
	}
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+readingColumns+` FROM readings
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing readings: %w", err)
	}
	defer rows.Close()

	readings := make([]model.Reading, 0, limit)
	for rows.Next() {
		r, err := scanReading(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning reading row: %w", err)
		}
		readings = append(readings, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating readings: %w", err)
	}

	return readings, nil
}

// UpdateOwned applies the non-nil fields to a reading, but only if it is
// owned by userID. Ownership is part of the same UPDATE statement — there is
// no separate existence check to race against. Returns false (and no error)
// when zero rows matched.
func (db *DB) UpdateOwned(ctx context.Context, userID, id string, fields repository.UpdateFields) (bool, error) {
	set := []string{"updated_at = ?"}
	args := []any{time.Now()}

	if fields.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *fields.Title)
	}
	if fields.Tags != nil {
		tags, err := encodeTags(*fields.Tags)
		if err != nil {
			return false, fmt.Errorf("sqlite: updating reading %s: %w", id, err)
		}
		set = append(set, "tags = ?")
		args = append(args, tags)
	}
	if fields.IsFavorite != nil {
		set = append(set, "is_favorite = ?")
		args = append(args, *fields.IsFavorite)
	}

	args = append(args, id, userID)
	result, err := db.conn.ExecContext(ctx,
		`UPDATE readings SET `+strings.Join(set, ", ")+`
		 WHERE id = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: updating reading %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteOwned removes a reading owned by userID. Irreversible — there is no
// soft delete. Returns false when nothing matched.
func (db *DB) DeleteOwned(ctx context.Context, userID, id string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM readings WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting reading %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

// SetShare writes the whole share capability in one statement: the flag, the
// token and the expiry land together or not at all. A token collision (the
// UNIQUE constraint firing) surfaces as apperror.Conflict so the caller can
// retry with a fresh token — it is never silently absorbed.
func (db *DB) SetShare(ctx context.Context, userID, id, token string, expiresAt time.Time) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE readings
		 SET is_shareable = 1, share_token = ?, share_expires_at = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		token, expiresAt, time.Now(), id, userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, apperror.Conflict("share token", id)
		}
		return false, fmt.Errorf("sqlite: sharing reading %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearShare disables sharing and clears the token and expiry in the same
// statement, so a revoked reading never keeps a stale token around.
func (db *DB) ClearShare(ctx context.Context, userID, id string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE readings
		 SET is_shareable = 0, share_token = NULL, share_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		time.Now(), id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: revoking share for reading %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

// GetByShareToken resolves a share token for public access. The gating
// predicate — shareable AND unexpired — is part of the query, so a revoked
// or expired link produces exactly the same NotFound as a token that never
// existed. No caller can tell the three cases apart.
func (db *DB) GetByShareToken(ctx context.Context, token string, now time.Time) (*model.Reading, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+readingColumns+` FROM readings
		 WHERE share_token = ? AND is_shareable = 1 AND share_expires_at > ?`,
		token, now,
	)
	reading, err := scanReading(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("shared reading", token)
		}
		return nil, fmt.Errorf("sqlite: resolving share token: %w", err)
	}
	return reading, nil
}
