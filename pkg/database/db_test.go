package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"file path", Config{Path: "/tmp/x.db"}, "file:/tmp/x.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"},
		{"memory", MemoryConfig("t"), "file:t?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000"},
		{"plain memory", Config{Path: ":memory:"}, "file::memory:?_foreign_keys=on&_busy_timeout=5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dsn(tt.cfg))
		})
	}
}

func TestMigrateIsRepeatableAndCascades(t *testing.T) {
	db, err := Open(MemoryConfig(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	ctx := context.Background()
	res, err := db.ExecContext(ctx, `INSERT INTO favorites (series_name) VALUES ('キングダム')`)
	require.NoError(t, err)
	favID, _ := res.LastInsertId()

	_, err = db.ExecContext(ctx, `INSERT INTO volumes (favorite_id, title) VALUES (?, 'キングダム 1')`, favID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO volumes (favorite_id, title) VALUES (?, 'キングダム 1')`, favID)
	require.Error(t, err, "duplicate title under one favorite must be rejected")

	_, err = db.ExecContext(ctx, `DELETE FROM favorites WHERE id = ?`, favID)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM volumes`).Scan(&n))
	assert.Zero(t, n)
}
