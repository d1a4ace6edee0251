// Package testutil provides database fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hundredminds/backend/internal/database"
)

// TestDBOption customises MustOpenTestDB.
type TestDBOption func(*options)

type options struct {
	migrate bool
}

// WithAutoMigrate creates the users, teams, members and invites tables.
func WithAutoMigrate() TestDBOption {
	return func(o *options) { o.migrate = true }
}

// MustOpenTestDB opens an in-memory sqlite database private to the calling
// test. Each call gets its own named memory database, so parallel tests never
// see each other's rows. The database is closed with the test.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	if o.migrate {
		require.NoError(t, database.AutoMigrate(db), "auto migrate")
	}
	return db
}
