package session

import (
	"context"
	"fmt"

	"github.com/justestif/go-spotify-insights/internal/db"
)

// Backend kinds accepted by Open.
const (
	KindMemory   = "memory"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

// Open creates the backend named by kind. dsn is a file path for sqlite and
// a connection URL for postgres; memory ignores it.
func Open(ctx context.Context, kind, dsn string) (Backend, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryBackend(), nil
	case KindSQLite:
		if dsn == "" {
			return nil, fmt.Errorf("sqlite session backend requires a database path")
		}
		return OpenSQLite(ctx, dsn)
	case KindPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres session backend requires DATABASE_URL")
		}
		database, err := db.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
		return NewPostgresBackend(database), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", kind)
	}
}
