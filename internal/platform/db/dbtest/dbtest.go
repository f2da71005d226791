// Package dbtest opens throwaway SQLite databases with the production schema.
package dbtest

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/open-builders/premium-backend/internal/platform/db"
)

// Open returns a migrated SQLite client living in t.TempDir().
func Open(t testing.TB) *db.Client {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	dsn := path + "?" + url.Values{
		"_pragma": []string{"busy_timeout(5000)", "journal_mode(WAL)"},
	}.Encode()

	client, err := db.Open(context.Background(), "sqlite", dsn, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Migrate(context.Background()))
	return client
}
