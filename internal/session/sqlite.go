package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/justestif/go-spotify-insights/internal/auth"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	user_name  TEXT NOT NULL DEFAULT '',
	token      TEXT,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at);
`

// SQLiteBackend stores sessions in a local SQLite file.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the session database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating session directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying session schema: %w", err)
	}

	return &SQLiteBackend{db: db, now: time.Now}, nil
}

// Get retrieves an unexpired session by ID.
func (b *SQLiteBackend) Get(ctx context.Context, id string) (*Data, error) {
	query := `
		SELECT id, user_id, user_name, token, created_at, expires_at
		FROM sessions
		WHERE id = ? AND expires_at > ?
	`
	var (
		d                    Data
		token                sql.NullString
		createdAt, expiresAt int64
	)
	err := b.db.QueryRowContext(ctx, query, id, b.now().Unix()).Scan(
		&d.ID,
		&d.UserID,
		&d.UserName,
		&token,
		&createdAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	d.CreatedAt = time.Unix(createdAt, 0)
	d.ExpiresAt = time.Unix(expiresAt, 0)
	if token.Valid {
		var rec auth.TokenRecord
		if err := json.Unmarshal([]byte(token.String), &rec); err != nil {
			return nil, fmt.Errorf("decoding session token: %w", err)
		}
		d.Token = &rec
	}
	return &d, nil
}

// Save inserts or replaces a session.
func (b *SQLiteBackend) Save(ctx context.Context, d *Data) error {
	var token sql.NullString
	if d.Token != nil {
		raw, err := json.Marshal(d.Token)
		if err != nil {
			return fmt.Errorf("encoding session token: %w", err)
		}
		token = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		INSERT INTO sessions (id, user_id, user_name, token, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			token = excluded.token,
			expires_at = excluded.expires_at
	`
	_, err := b.db.ExecContext(ctx, query,
		d.ID,
		d.UserID,
		d.UserName,
		token,
		d.CreatedAt.Unix(),
		d.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// Delete removes a session by ID.
func (b *SQLiteBackend) Delete(ctx context.Context, id string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired sessions.
func (b *SQLiteBackend) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := b.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, b.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
