package index

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSync_Stats(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_ = os.WriteFile(filepath.Join(vaultDir, "synced.html"), []byte(`<h1 id="heading-0">A</h1>`), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "raw.html"), []byte(`<h1>B</h1><h2>C</h2>`), 0o644)
	_ = db.UpsertDocument(DocumentRow{Path: "stale.html", Checksum: "old", UpdatedAt: time.Now()}, "", nil)

	stats, err := Sync(db, store, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	want := SyncStats{Indexed: 2, Removed: 1, Unsynced: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	// A second pass finds nothing to do.
	stats, err = Sync(db, store, logger)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if stats != (SyncStats{}) {
		t.Errorf("second pass stats = %+v", stats)
	}

	headings, _ := db.Headings("raw.html")
	if len(headings) != 2 || headings[0].ID != "" {
		t.Errorf("headings = %+v", headings)
	}
}
