// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside the Go binary as a single
// file. No separate database server to install, configure, or manage. The
// whole app deploys as one binary plus one file.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath, configures it for
// web-server use, and runs migrations plus the reading-type seed.
//
// dbPath ":memory:" gives an in-memory database — used throughout the tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new pool connection to ":memory:" would get its own empty
	// database. One connection keeps all queries on the same data.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// Force an immediate connection so a bad path surfaces here, not on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in flight — without
	// it SQLite locks the whole database for every write, which stalls a
	// web server.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. We need them ON so that
	// deleting a user cascades to their readings.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	if err := db.seedReadingTypes(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: seeding reading types: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates all tables and indexes. CREATE ... IF NOT EXISTS keeps it
// idempotent on existing databases.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER NOT NULL DEFAULT 0,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			image_url     TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users(email) WHERE email != '';
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id
			ON users(github_id) WHERE github_id != 0;
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS reading_types (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			icon        TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL DEFAULT 'general',
			is_active   INTEGER NOT NULL DEFAULT 1,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating reading_types table: %w", err)
	}

	// The composite indexes mirror the history/analytics query patterns:
	// "all readings for user by recency", "for user+type by recency",
	// "for user filtered by favorite", plus the share-token lookup.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			reading_type_id  TEXT NOT NULL REFERENCES reading_types(id),
			prompt           TEXT NOT NULL,
			ai_response      TEXT NOT NULL,
			title            TEXT,
			tags             TEXT,
			is_favorite      INTEGER NOT NULL DEFAULT 0,
			is_shareable     INTEGER NOT NULL DEFAULT 0,
			share_token      TEXT UNIQUE,
			share_expires_at DATETIME,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_readings_user_created
			ON readings(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_readings_user_type_created
			ON readings(user_id, reading_type_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_readings_user_favorite
			ON readings(user_id, is_favorite);
		CREATE INDEX IF NOT EXISTS idx_readings_share_token
			ON readings(share_token);
		CREATE INDEX IF NOT EXISTS idx_readings_type_created
			ON readings(reading_type_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating readings table: %w", err)
	}

	return nil
}

// seedReadingTypes inserts the built-in reading-type catalogue.
// INSERT OR IGNORE keyed on the UNIQUE name keeps this idempotent: restarts
// never duplicate rows or overwrite operator edits.
func (db *DB) seedReadingTypes() error {
	seed := []struct {
		name, description, icon, category string
	}{
		{"Tarot Card Reading", "Discover your future through the ancient art of tarot card interpretation", "🃏", "divination"},
		{"Crystal Ball Reading", "Peer into the mystical realm with crystal ball divination", "🔮", "divination"},
		{"Palm Reading", "Unlock the secrets written in the lines of your palm", "✋", "divination"},
		{"Astrology Reading", "Explore your destiny through the alignment of the stars", "⭐", "astrology"},
		{"Numerology Reading", "Decode the hidden meanings in numbers and their vibrations", "🔢", "divination"},
		{"Dream Interpretation", "Unravel the messages hidden within your dreams", "💭", "interpretation"},
	}

	now := time.Now()
	for _, s := range seed {
		_, err := db.conn.Exec(
			`INSERT OR IGNORE INTO reading_types
				(id, name, description, icon, category, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			xid.New().String(), s.name, s.description, s.icon, s.category, now, now,
		)
		if err != nil {
			return fmt.Errorf("seeding type %q: %w", s.name, err)
		}
	}
	return nil
}
