package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) string {
	t.Helper()
	return "sqlite://" + filepath.Join(t.TempDir(), "choicetree.db")
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{"relative sqlite", "sqlite://data/ct.db", DriverSQLite, "file:data/ct.db?_foreign_keys=on", false},
		{"absolute sqlite", "sqlite:///var/lib/ct.db", DriverSQLite, "file:/var/lib/ct.db?_foreign_keys=on", false},
		{"sqlite keeps options", "sqlite:///ct.db?_foreign_keys=off", DriverSQLite, "file:/ct.db?_foreign_keys=off", false},
		{"postgres", "postgres://u:p@localhost/ct?sslmode=disable", DriverPostgres, "postgres://u:p@localhost/ct?sslmode=disable", false},
		{"unknown scheme", "mysql://localhost/ct", "", "", true},
		{"empty sqlite path", "sqlite://", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, err := parseURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, driver)
			assert.Equal(t, tt.wantDSN, dsn)
		})
	}
}

func TestMigrateUp_AppliesOnce(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, openTestDB(t))
	require.NoError(t, err)
	defer conn.Close()

	ran, err := MigrateUp(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_initial_schema.sql"}, ran)

	ran, err = MigrateUp(ctx, conn)
	require.NoError(t, err)
	assert.Empty(t, ran)

	statuses, err := MigrateStatus(ctx, conn)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Applied)
	assert.NotNil(t, statuses[0].AppliedAt)
}

func TestMigrateStatus_Pending(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, openTestDB(t))
	require.NoError(t, err)
	defer conn.Close()

	statuses, err := MigrateStatus(ctx, conn)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.False(t, s.Applied, s.ID)
		assert.Len(t, s.Checksum, 64)
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, openTestDB(t))
	require.NoError(t, err)
	defer conn.Close()

	_, err = MigrateUp(ctx, conn)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, "UPDATE migrations SET checksum = 'tampered'")
	require.NoError(t, err)

	_, err = MigrateUp(ctx, conn)
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestQueries_NamedQueries(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, openTestDB(t))
	require.NoError(t, err)
	defer conn.Close()

	_, err = MigrateUp(ctx, conn)
	require.NoError(t, err)

	q, err := LoadQueries(conn)
	require.NoError(t, err)

	var latest int64
	require.NoError(t, q.Get(ctx, "latest-tree-version", &latest))
	assert.Zero(t, latest)

	_, err = q.Exec(ctx, "no-such-query")
	assert.ErrorContains(t, err, "query not found")
}

func TestQueries_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, openTestDB(t))
	require.NoError(t, err)
	defer conn.Close()

	_, err = MigrateUp(ctx, conn)
	require.NoError(t, err)
	q, err := LoadQueries(conn)
	require.NoError(t, err)

	err = q.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, "insert-tree-version", 3, "2026-01-01 00:00:00"); err != nil {
			return err
		}
		// Duplicate primary key fails the transaction
		_, err := tx.Exec(ctx, "insert-tree-version", 3, "2026-01-01 00:00:00")
		return err
	})
	require.Error(t, err)

	var n int
	require.NoError(t, q.Get(ctx, "count-tree-version", &n, 3))
	assert.Zero(t, n)
}
