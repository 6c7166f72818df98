// Package testutil provides shared test helpers for setting up vaults,
// databases and the document service.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/vowpost/internal/docservice"
	"github.com/starford/vowpost/internal/index"
	"github.com/starford/vowpost/internal/storage"
)

// TestDB opens an index in a per-test directory and closes it at cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestService wires a document service over a temporary vault and database.
func TestService(t *testing.T, opts ...docservice.Option) (*docservice.Service, storage.Provider) {
	t.Helper()
	_, store := TestVault(t)
	db := TestDB(t)
	opts = append([]docservice.Option{docservice.WithLogger(QuietLogger())}, opts...)
	return docservice.NewService(store, db, opts...), store
}
