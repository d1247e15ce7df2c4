package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteMemory(t *testing.T) {
	gdb, err := Connect(Config{Type: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// In-memory SQLite must stay on one connection.
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConnectRejectsUnknownDialect(t *testing.T) {
	_, err := Connect(Config{Type: "oracle", DSN: "whatever"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestConnectRequiresDSN(t *testing.T) {
	_, err := Connect(Config{Type: "sqlite"}, nil)
	require.Error(t, err)
}

func TestFromEnvDefaultsToPostgres(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("DATABASE_DSN", "host=localhost")

	cfg := FromEnv()
	assert.Equal(t, "postgres", cfg.Type)
	assert.Equal(t, "host=localhost", cfg.DSN)
}
