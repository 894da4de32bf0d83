// Package testutil provides shared helpers for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/wayfarerhq/wayfarer/internal/storage"
)

// NewStorage creates a migrated SQLite storage in a temporary directory.
// It is closed automatically when the test finishes.
func NewStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "wayfarer-test.db")
	s, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test storage: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
