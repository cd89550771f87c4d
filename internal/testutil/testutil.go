// Package testutil provides shared test helpers for setting up stores and
// download directories.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/huttdl/internal/store"
)

// TestStore creates a temporary sqlite store that is automatically cleaned
// up with the test.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "huttdl-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
