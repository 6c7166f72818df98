package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/vowpost/internal/tocsync"
)

// SyncedFunc is told about every pass of a managed session.
type SyncedFunc func(id, path string, res *tocsync.Result)

// Managed is a session registered with a Manager.
type Managed struct {
	*Session
	ID   string
	Path string

	mu      sync.Mutex
	touched time.Time
}

func (m *Managed) touch(now time.Time) {
	m.mu.Lock()
	m.touched = now
	m.mu.Unlock()
}

func (m *Managed) idleSince() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.touched
}

// Manager keeps the editing sessions opened over HTTP, keyed by UUID.
type Manager struct {
	delay    time.Duration
	ttl      time.Duration
	syncOpts tocsync.Options
	onSynced SyncedFunc
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Managed
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Delay    time.Duration
	TTL      time.Duration
	Sync     tocsync.Options
	OnSynced SyncedFunc
	Logger   *slog.Logger
}

// NewManager creates an empty registry.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		delay:    cfg.Delay,
		ttl:      cfg.TTL,
		syncOpts: cfg.Sync,
		onSynced: cfg.OnSynced,
		logger:   cfg.Logger,
		now:      time.Now,
		sessions: make(map[string]*Managed),
	}
}

// Open starts a session over initial markup. path is informational and names
// the stored document the session edits, if any.
func (m *Manager) Open(path, initial string) *Managed {
	id := uuid.NewString()
	managed := &Managed{ID: id, Path: path, touched: m.now()}
	managed.Session = NewSession(initial,
		WithDelay(m.delay),
		WithSyncOptions(m.syncOpts),
		WithLogger(m.logger.With(slog.String("session", id))),
		WithOnSync(func(res *tocsync.Result) {
			if m.onSynced != nil {
				m.onSynced(id, path, res)
			}
		}),
	)

	m.mu.Lock()
	m.sessions[id] = managed
	m.mu.Unlock()

	m.logger.Info("editor: session opened", slog.String("session", id), slog.String("path", path))
	return managed
}

// Get returns the session and marks it as recently used.
func (m *Manager) Get(id string) (*Managed, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.touch(m.now())
	}
	return s, ok
}

// Close ends and forgets a session. It reports false for unknown ids.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	m.logger.Info("editor: session closed", slog.String("session", id))
	return true
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions untouched for longer than the TTL and returns how
// many were closed. A zero TTL disables expiry.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Managed
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.logger.Info("editor: session expired", slog.String("session", s.ID))
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is cancelled, then closes the rest.
func (m *Manager) Run(ctx context.Context) {
	interval := m.ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Managed)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
