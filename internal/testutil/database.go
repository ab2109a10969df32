package testutil

import (
	"path/filepath"
	"testing"

	"romplestiltskin/internal/store"
)

// NewTestStore creates a SQLite store backed by a temp file with all
// migrations applied. The store is automatically closed when the test
// completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		st.Close()
	})

	return st
}
