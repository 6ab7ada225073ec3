// Package storetest builds sqlite-backed stores for tests.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/pkg/database"
	applogger "github.com/jstittsworth/fantasy-advisor/pkg/logger"
)

// NewDB opens a migrated in-memory database private to the calling test.
func NewDB(t testing.TB) *database.DB {
	t.Helper()

	// every pooled connection would otherwise get its own empty :memory: database
	db, err := database.Open(database.Options{
		Dialector:    sqlite.Open(":memory:"),
		MaxOpenConns: 1,
		Logger:       applogger.NewTestLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(models.All()...))
	return db
}

// NewStore returns a GormStore over a fresh in-memory database.
func NewStore(t testing.TB) *store.GormStore {
	t.Helper()
	return store.NewGormStore(NewDB(t), applogger.NewTestLogger())
}
