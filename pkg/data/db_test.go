package data

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	err := Init(dbPath)
	require.NoError(t, err)
	db, err := GetDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInit_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "test.db")
	err := Init(dbPath)
	require.NoError(t, err)
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestInit_EmptyPath(t *testing.T) {
	err := Init("")
	assert.Error(t, err)
}

func TestInit_RunsMigrations(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	require.NoError(t, Init(dbPath))
	db, err := GetDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	list, err := migrations()
	require.NoError(t, err)
	require.NotEmpty(t, list)

	var version int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	assert.NoError(t, err)
	assert.Equal(t, list[len(list)-1].version, version)
}

func TestInit_Idempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	require.NoError(t, Init(dbPath))
	assert.NoError(t, Init(dbPath))
}

func TestMigrations_Ordered(t *testing.T) {
	list, err := migrations()
	require.NoError(t, err)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].version, list[i].version)
	}
}

func TestNilDB(t *testing.T) {
	_, err := GetEvaluation(nil, "x")
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = ListEvaluations(nil, ListCriteria{})
	assert.ErrorIs(t, err, errDBNotInitialized)
	assert.ErrorIs(t, SaveEvaluation(nil, nil), errDBNotInitialized)
	_, err = GetSummary(nil, sinceEpoch)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetCategorySummary(nil, sinceEpoch)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = DeleteEvaluations(nil, sinceEpoch)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetDataState(nil)
	assert.ErrorIs(t, err, errDBNotInitialized)
}

