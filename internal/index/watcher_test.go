package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/vowpost/internal/storage"
)

// watchEnv is a vault, its index and a running watcher.
type watchEnv struct {
	root  string
	store storage.Provider
	db    *DB

	mu     sync.Mutex
	events []string
}

func newWatchEnv(t *testing.T) *watchEnv {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db, err := Open(filepath.Join(t.TempDir(), "watch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &watchEnv{root: root, store: store, db: db}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// start runs Watch until the test ends and waits for it to settle.
func (e *watchEnv) start(t *testing.T, opts ...WatchOption) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, e.db, e.store, e.root, quietLogger(), e.record, opts...)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func (e *watchEnv) record(kind, path string) {
	e.mu.Lock()
	e.events = append(e.events, kind+":"+path)
	e.mu.Unlock()
}

func (e *watchEnv) seen(ev string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Contains(e.events, ev)
}

func (e *watchEnv) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.events)
}

func (e *watchEnv) write(t *testing.T, rel, body string) {
	t.Helper()
	abs := filepath.Join(e.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (e *watchEnv) indexed(path string) func() bool {
	return func() bool {
		cs, _ := e.db.GetChecksum(path)
		return cs != ""
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	env := newWatchEnv(t)
	env.start(t)

	env.write(t, "new.html", "<h1>New</h1><h2>Menu</h2>")

	eventually(t, 5*time.Second, 50*time.Millisecond, env.indexed("new.html"), "new file not indexed")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool { return env.seen("created:new.html") },
		"expected created:new.html callback")

	hs, err := env.db.Headings("new.html")
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 2 || hs[1].Text != "Menu" {
		t.Errorf("headings = %+v", hs)
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	env := newWatchEnv(t)
	env.start(t)

	if err := os.MkdirAll(filepath.Join(env.root, "venues"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	env.write(t, "venues/barn.html", "<h1>Barn</h1>")

	eventually(t, 5*time.Second, 50*time.Millisecond, env.indexed("venues/barn.html"),
		"file in new subdir not indexed")
}

func TestWatcher_UpdateReindexesHeadings(t *testing.T) {
	env := newWatchEnv(t)
	env.write(t, "post.html", "<h1>Post</h1>")
	if _, err := Sync(env.db, env.store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	env.start(t, WithDebounce(20*time.Millisecond))

	env.write(t, "post.html", "<h1>Post</h1><h2>Added</h2>")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		hs, _ := env.db.Headings("post.html")
		return len(hs) == 2
	}, "new heading not indexed")
	if !env.seen("updated:post.html") {
		t.Errorf("events = %v, want updated:post.html", env.snapshot())
	}
}

func TestWatcher_UnchangedRewriteIsSilent(t *testing.T) {
	env := newWatchEnv(t)
	env.write(t, "same.html", "<h1>Same</h1>")
	if _, err := Sync(env.db, env.store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	env.start(t, WithDebounce(10*time.Millisecond))

	env.write(t, "same.html", "<h1>Same</h1>")
	time.Sleep(200 * time.Millisecond)

	if ev := env.snapshot(); len(ev) != 0 {
		t.Errorf("events = %v, want none for identical content", ev)
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	env := newWatchEnv(t)
	env.write(t, "del.html", "<h1>Delete Me</h1>")
	if _, err := Sync(env.db, env.store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	env.start(t)

	if err := os.Remove(filepath.Join(env.root, "del.html")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !env.indexed("del.html")()
	}, "deleted file still in index")
	eventually(t, time.Second, 20*time.Millisecond, func() bool { return env.seen("deleted:del.html") },
		"expected deleted:del.html callback")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	env := newWatchEnv(t)
	env.write(t, "old.html", "<h1>Rename</h1>")
	if _, err := Sync(env.db, env.store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	env.start(t)

	if err := os.Rename(filepath.Join(env.root, "old.html"), filepath.Join(env.root, "renamed.html")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !env.indexed("old.html")() && env.indexed("renamed.html")()
	}, "old path should be removed and new path indexed")
}

func TestWatcher_BurstIndexedOnce(t *testing.T) {
	env := newWatchEnv(t)
	env.start(t, WithDebounce(150*time.Millisecond))

	for i := 0; i < 5; i++ {
		env.write(t, "burst.html", "<h1>Draft</h1><p>"+strings.Repeat("x", i)+"</p>")
		time.Sleep(5 * time.Millisecond)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		hs, _ := env.db.Headings("burst.html")
		return len(hs) == 1
	}, "burst file not indexed")
	time.Sleep(300 * time.Millisecond)

	if ev := env.snapshot(); len(ev) != 1 || ev[0] != "created:burst.html" {
		t.Errorf("events = %v, want a single created:burst.html", ev)
	}
}

func TestWatcher_IgnoresNonDocuments(t *testing.T) {
	env := newWatchEnv(t)
	env.start(t, WithDebounce(10*time.Millisecond))

	env.write(t, "notes.txt", "<h1>x</h1>")
	env.write(t, ".drafts/hidden.html", "<h1>x</h1>")
	time.Sleep(200 * time.Millisecond)

	paths, _ := env.db.AllPaths()
	if len(paths) != 0 {
		t.Errorf("indexed paths = %v, want none", paths)
	}
}
