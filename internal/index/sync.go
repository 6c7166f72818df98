package index

import (
	"log/slog"
	"time"

	"github.com/starford/vowpost/internal/checksum"
	"github.com/starford/vowpost/internal/parser"
	"github.com/starford/vowpost/internal/storage"
)

// SyncStats counts what a Sync pass changed.
type SyncStats struct {
	Indexed int
	Removed int
	Failed  int
	// Unsynced counts indexed headings without an id, found in files edited
	// outside the service.
	Unsynced int
}

// Sync walks the vault and brings the index up to date: new and changed
// files are parsed and upserted, files gone from disk are deleted.
func Sync(db DocumentIndex, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	metas, err := store.List("")
	if err != nil {
		return stats, err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			stats.Failed++
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		unsynced, err := indexFile(db, m.Path, data)
		if err != nil {
			stats.Failed++
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
		stats.Unsynced += unsynced
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteDocument(p); err != nil {
			stats.Failed++
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	logger.Info("sync: complete",
		slog.Int("documents", len(metas)),
		slog.Int("indexed", stats.Indexed),
		slog.Int("removed", stats.Removed),
		slog.Int("failed", stats.Failed),
		slog.Int("unsynced_headings", stats.Unsynced))
	return stats, nil
}

// IndexFile parses data and upserts it with its headings. Headings are
// indexed as stored; files edited outside the service may carry headings
// without ids until they are next saved through it.
func IndexFile(db DocumentIndex, path string, data []byte) error {
	_, err := indexFile(db, path, data)
	return err
}

func indexFile(db DocumentIndex, path string, data []byte) (unsynced int, err error) {
	res, err := parser.Parse(data)
	if err != nil {
		return 0, err
	}
	for _, h := range res.Headings {
		if h.ID == "" {
			unsynced++
		}
	}

	row := DocumentRow{
		Path:      path,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		Tags:      res.Tags,
		UpdatedAt: time.Now().UTC(),
	}
	return unsynced, db.UpsertDocument(row, res.Text, res.Headings)
}
