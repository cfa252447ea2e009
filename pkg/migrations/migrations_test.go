package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSchema = `
create table if not exists kv (
	key text primary key,
	value text not null
);

create index if not exists kv_value on kv(value);
`

func TestOpenAndMigrateDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := OpenAndMigrateDB(context.Background(), testSchema, path)
	require.NoError(t, err)
	_, err = db.Exec("insert into kv (key, value) values ('a', 'b')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// applying the schema twice must be harmless
	db, err = OpenAndMigrateDB(context.Background(), testSchema, path)
	require.NoError(t, err)
	defer db.Close()

	var value string
	require.NoError(t, db.QueryRow("select value from kv where key = 'a'").Scan(&value))
	require.Equal(t, "b", value)
}

func TestSplitStatements(t *testing.T) {
	require.Len(t, splitStatements(testSchema), 2)
	require.Empty(t, splitStatements("  ;\n ; "))
}

func TestIsRemote(t *testing.T) {
	require.True(t, IsRemote("libsql://bookingbot.turso.io?authToken=x"))
	require.True(t, IsRemote("https://bookingbot.turso.io"))
	require.False(t, IsRemote(":memory:"))
	require.False(t, IsRemote(".dev/history.db"))
}
