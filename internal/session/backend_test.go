package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-insights/internal/auth"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newSQLite(t *testing.T, c *clock) Backend {
	t.Helper()
	b, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	b.now = c.Now
	t.Cleanup(func() { b.Close() })
	return b
}

func newMemory(_ *testing.T, c *clock) Backend {
	b := NewMemoryBackend()
	b.now = c.Now
	return b
}

func testData(id string) *Data {
	return &Data{
		ID: id,
		Token: &auth.TokenRecord{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    testNow.Add(time.Hour).Unix(),
			Scope:        []string{"user-read-email", "user-top-read"},
		},
		UserID:    "user-1",
		UserName:  "Test User",
		CreatedAt: testNow,
		ExpiresAt: testNow.Add(DefaultTTL),
	}
}

func TestBackends(t *testing.T) {
	backends := map[string]func(*testing.T, *clock) Backend{
		"memory": newMemory,
		"sqlite": newSQLite,
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("missing session", func(t *testing.T) {
				b := open(t, &clock{now: testNow})
				_, err := b.Get(ctx, "nope")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("save and get", func(t *testing.T) {
				b := open(t, &clock{now: testNow})
				want := testData("s1")
				require.NoError(t, b.Save(ctx, want))

				got, err := b.Get(ctx, "s1")
				require.NoError(t, err)
				assert.Equal(t, want.ID, got.ID)
				assert.Equal(t, want.UserID, got.UserID)
				assert.Equal(t, want.UserName, got.UserName)
				assert.Equal(t, *want.Token, *got.Token)
				assert.Equal(t, want.CreatedAt.Unix(), got.CreatedAt.Unix())
				assert.Equal(t, want.ExpiresAt.Unix(), got.ExpiresAt.Unix())
			})

			t.Run("save replaces token", func(t *testing.T) {
				b := open(t, &clock{now: testNow})
				d := testData("s1")
				require.NoError(t, b.Save(ctx, d))

				d.Token = nil
				require.NoError(t, b.Save(ctx, d))

				got, err := b.Get(ctx, "s1")
				require.NoError(t, err)
				assert.Nil(t, got.Token)
				assert.Equal(t, "user-1", got.UserID)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				b := open(t, &clock{now: testNow})
				require.NoError(t, b.Save(ctx, testData("s1")))

				require.NoError(t, b.Delete(ctx, "s1"))
				require.NoError(t, b.Delete(ctx, "s1"))

				_, err := b.Get(ctx, "s1")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("expired sessions", func(t *testing.T) {
				c := &clock{now: testNow}
				b := open(t, c)
				require.NoError(t, b.Save(ctx, testData("old")))

				fresh := testData("fresh")
				fresh.ExpiresAt = testNow.Add(3 * DefaultTTL)
				require.NoError(t, b.Save(ctx, fresh))

				c.now = testNow.Add(2 * DefaultTTL)

				_, err := b.Get(ctx, "old")
				assert.ErrorIs(t, err, ErrNotFound)

				n, err := b.DeleteExpired(ctx)
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)

				_, err = b.Get(ctx, "fresh")
				assert.NoError(t, err)
			})
		})
	}
}

func TestMemoryBackendReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	b.now = func() time.Time { return testNow }

	d := testData("s1")
	require.NoError(t, b.Save(ctx, d))
	d.Token.Scope[0] = "mutated"

	got, err := b.Get(ctx, "s1")
	require.NoError(t, err)
	got.Token.AccessToken = "mutated"

	again, err := b.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "access", again.Token.AccessToken)
	assert.Equal(t, "user-read-email", again.Token.Scope[0])
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = Open(ctx, KindSQLite, filepath.Join(t.TempDir(), "nested", "s.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBackend{}, b)
	require.NoError(t, b.Close())

	_, err = Open(ctx, KindSQLite, "")
	assert.Error(t, err)

	_, err = Open(ctx, KindPostgres, "")
	assert.Error(t, err)

	_, err = Open(ctx, "redis", "")
	assert.ErrorContains(t, err, "unknown session backend")
}
