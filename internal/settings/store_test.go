package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tipbook/backoffice/internal/platform/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, filepath.Join(t.TempDir(), "database.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = db.Migrate(ctx, conn, db.Migrations, nil)
	require.NoError(t, err)
	return NewStore(conn)
}

func TestBackupRetentionDefaultsFromMigration(t *testing.T) {
	store := newTestStore(t)
	n, err := store.BackupRetention(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, n)
}

func TestSetOverridesAndKeepsDescription(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, KeyBackupRetention, "3", ""))
	n, err := store.BackupRetention(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	var desc string
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT description FROM settings WHERE key = ?`, KeyBackupRetention).Scan(&desc))
	require.Equal(t, "Number of database backups to keep", desc)
}

func TestPositiveIntFallsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, raw := range []string{"abc", "0", "-4", ""} {
		require.NoError(t, store.Set(ctx, "custom", raw, "test"))
		v, err := store.PositiveInt(ctx, "custom", 11)
		require.NoError(t, err)
		require.Equal(t, 11, v, raw)
	}

	v, err := store.PositiveInt(ctx, "missing", 4)
	require.NoError(t, err)
	require.Equal(t, 4, v)
}

func TestNilStore(t *testing.T) {
	var store *Store
	_, _, err := store.Get(context.Background(), "x")
	require.ErrorIs(t, err, ErrStoreNotInitialised)
}
