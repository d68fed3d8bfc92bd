package database

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getMemoryDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStmtCache(t *testing.T) {
	ctx := context.Background()
	db := getMemoryDB(t)
	_, err := db.Exec(`CREATE TABLE kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)

	sc := NewStmtCache(db)
	insert := `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`
	_, err = sc.Exec(ctx, insert, "a", "1")
	require.NoError(t, err)
	_, err = sc.Exec(ctx, insert, "a", "2")
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Len())

	s1, err := sc.Prepare(ctx, insert)
	require.NoError(t, err)
	s2, err := sc.Prepare(ctx, insert)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	rows, err := sc.Query(ctx, `SELECT value FROM kv WHERE key = ?`, "a")
	require.NoError(t, err)
	var values []string
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		values = append(values, v)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"2"}, values)
	assert.Equal(t, 2, sc.Len())

	_, err = sc.Prepare(ctx, `SELECT nope FROM missing`)
	assert.Error(t, err)
	assert.Equal(t, 2, sc.Len())

	require.NoError(t, sc.Close())
	assert.Equal(t, 0, sc.Len())
	_, err = sc.Prepare(ctx, insert)
	assert.ErrorIs(t, err, ErrClosed)
}
