package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/fortuneai/internal/apperror"
	"github.com/sakif/fortuneai/internal/model"
	"github.com/sakif/fortuneai/internal/repository"
)

// compile-time check that *DB implements repository.ReadingTypeRepository
var _ repository.ReadingTypeRepository = (*DB)(nil)

// ListActiveTypes returns the catalogue of reading types available for new
// readings, in a stable alphabetical order. Inactive types are excluded —
// they exist only to keep old readings' foreign keys valid.
func (db *DB) ListActiveTypes(ctx context.Context) ([]model.ReadingType, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, description, icon, category, is_active, created_at, updated_at
		 FROM reading_types
		 WHERE is_active = 1
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reading types: %w", err)
	}
	defer rows.Close()

	var types []model.ReadingType
	for rows.Next() {
		var t model.ReadingType
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.Icon, &t.Category,
			&t.IsActive, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning reading type row: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reading types: %w", err)
	}

	return types, nil
}

// GetTypeByID retrieves a single reading type, active or not.
func (db *DB) GetTypeByID(ctx context.Context, id string) (*model.ReadingType, error) {
	var t model.ReadingType
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, icon, category, is_active, created_at, updated_at
		 FROM reading_types WHERE id = ?`,
		id,
	).Scan(
		&t.ID, &t.Name, &t.Description, &t.Icon, &t.Category,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("reading type", id)
		}
		return nil, fmt.Errorf("sqlite: getting reading type %s: %w", id, err)
	}
	return &t, nil
}
