package sqlstore

import (
	"testing"

	"noteboard/internal/store"
	"noteboard/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) store.Store {
	t.Helper()
	s, err := New("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, newMemoryStore)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New("mysql", "whatever")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dbType: Postgres}
	assert.Equal(t, "UPDATE notes SET sort_order = $1 WHERE id = $2",
		pg.rebind("UPDATE notes SET sort_order = ? WHERE id = ?"))

	lite := &SQLStore{dbType: SQLite}
	assert.Equal(t, "SELECT ? FROM notes", lite.rebind("SELECT ? FROM notes"))
}

func TestSchemaRejectsUnknownColor(t *testing.T) {
	s, err := New("sqlite3", ":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO notes (id, content, color, sort_order, created_at)
		VALUES ('x', 'c', 'purple', 1, CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}
