package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/premium-backend/internal/platform/db/dbtest"
)

func TestMigrateIsRepeatable(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()

	require.NoError(t, client.Migrate(ctx))

	var applied int
	require.NoError(t, client.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)

	for _, table := range []string{"users", "verification_claims", "queue_entries", "admin_actions", "payment_observations"} {
		var n int
		err := client.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
		assert.NoError(t, err, table)
	}
	assert.NoError(t, client.HealthCheck(ctx))
}

func TestOutstandingQueueEntryIsUnique(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()

	const insert = `INSERT INTO queue_entries (telegram_id, enqueued_at) VALUES ($1, CURRENT_TIMESTAMP)`
	_, err := client.ExecContext(ctx, insert, 7)
	require.NoError(t, err)
	_, err = client.ExecContext(ctx, insert, 7)
	assert.Error(t, err)

	_, err = client.ExecContext(ctx, `UPDATE queue_entries SET matched_reference = 'tx' WHERE telegram_id = 7`)
	require.NoError(t, err)
	_, err = client.ExecContext(ctx, insert, 7)
	assert.NoError(t, err)
}
