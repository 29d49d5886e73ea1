package session

import (
	"context"
	"errors"

	"github.com/justestif/go-spotify-insights/internal/auth"
	"github.com/justestif/go-spotify-insights/internal/db"
)

// PostgresBackend stores sessions in PostgreSQL.
type PostgresBackend struct {
	database *db.DB
}

// NewPostgresBackend creates a backend over an open database.
// The caller owns the database; Close releases it.
func NewPostgresBackend(database *db.DB) *PostgresBackend {
	return &PostgresBackend{database: database}
}

// Get retrieves a session by ID from the database.
func (b *PostgresBackend) Get(ctx context.Context, id string) (*Data, error) {
	row, err := b.database.Sessions().Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(row), nil
}

// Save upserts the session.
func (b *PostgresBackend) Save(ctx context.Context, d *Data) error {
	return b.database.Sessions().Upsert(ctx, toRow(d))
}

// Delete removes a session from the database.
func (b *PostgresBackend) Delete(ctx context.Context, id string) error {
	return b.database.Sessions().Delete(ctx, id)
}

// DeleteExpired removes expired sessions.
func (b *PostgresBackend) DeleteExpired(ctx context.Context) (int64, error) {
	return b.database.Sessions().DeleteExpired(ctx)
}

// Close closes the connection pool.
func (b *PostgresBackend) Close() error {
	b.database.Close()
	return nil
}

func toRow(d *Data) *db.Session {
	row := &db.Session{
		ID:        d.ID,
		UserID:    d.UserID,
		UserName:  d.UserName,
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
	}
	if d.Token != nil {
		access := d.Token.AccessToken
		refresh := d.Token.RefreshToken
		expiry := d.Token.Expiry()
		row.AccessToken = &access
		row.RefreshToken = &refresh
		row.TokenExpiry = &expiry
		row.Scope = d.Token.Clone().Scope
	}
	return row
}

func fromRow(row *db.Session) *Data {
	d := &Data{
		ID:        row.ID,
		UserID:    row.UserID,
		UserName:  row.UserName,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}
	if row.HasToken() {
		d.Token = &auth.TokenRecord{
			AccessToken:  *row.AccessToken,
			RefreshToken: *row.RefreshToken,
			ExpiresAt:    row.TokenExpiry.Unix(),
			Scope:        row.Scope,
		}
	}
	return d
}
