// Package testutil provides shared test helpers: an isolated run history
// database, toy classifier artifacts, and ledger table builders.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/ledger-sieve/internal/storage"
)

// SetupRunStore creates a migrated in-memory run history database that is
// closed when the test ends.
//
// Example:
//
//	runs := testutil.SetupRunStore(t)
//	p, _ := pipeline.New(artifacts, nil, uploads, outputs, pipeline.WithRunStore(runs))
func SetupRunStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
