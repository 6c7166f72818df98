// Package editor models one rich-text editing surface: it owns the markup,
// tells the host about every change and keeps headings and the table of
// contents in step through a debounced synchronisation pass.
package editor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/starford/vowpost/internal/markup"
	"github.com/starford/vowpost/internal/models"
	"github.com/starford/vowpost/internal/scheduler"
	"github.com/starford/vowpost/internal/toc"
	"github.com/starford/vowpost/internal/tocsync"
)

// DefaultDelay is the quiet period before a synchronisation pass.
const DefaultDelay = 300 * time.Millisecond

// State is the position of a session in its edit/scan cycle.
type State int

// Session states.
const (
	StateIdle State = iota
	StateEditing
	StateScheduled
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEditing:
		return "editing"
	case StateScheduled:
		return "scheduled"
	case StateScanning:
		return "scanning"
	}
	return "unknown"
}

// ChangeFunc receives the full markup whenever it changes.
type ChangeFunc func(markup string)

// SyncFunc receives the result of every synchronisation pass.
type SyncFunc func(res *tocsync.Result)

// Option configures a Session.
type Option func(*Session)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(s *Session) { s.delay = d }
}

// WithOnChange registers the host change callback.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Session) { s.onChange = fn }
}

// WithOnSync registers a callback fired after each synchronisation pass.
func WithOnSync(fn SyncFunc) Option {
	return func(s *Session) { s.onSync = fn }
}

// WithSyncOptions sets the options used for every pass.
func WithSyncOptions(opts tocsync.Options) Option {
	return func(s *Session) { s.syncOpts = opts }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is one editing surface. All methods are safe for concurrent use;
// callbacks run without the session lock held.
type Session struct {
	delay    time.Duration
	onChange ChangeFunc
	onSync   SyncFunc
	syncOpts tocsync.Options
	logger   *slog.Logger

	task *scheduler.Task

	mu       sync.Mutex
	markup   string
	version  uint64
	headings []models.Heading
	state    State
	scans    int
	closed   bool
}

// NewSession starts a session over the host's initial markup and schedules
// the first synchronisation pass.
func NewSession(initial string, opts ...Option) *Session {
	s := &Session{
		delay:  DefaultDelay,
		logger: slog.Default(),
		markup: initial,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.task = scheduler.NewTask(s.delay, s.scan)

	s.state = StateScheduled
	s.task.Schedule()
	return s
}

// Edit replaces the markup with the host's latest content. The host is told
// immediately; headings are refreshed once edits pause for the delay.
func (s *Session) Edit(content string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.markup = content
	s.version++
	s.state = StateEditing
	s.mu.Unlock()

	s.notify(content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	// Arm and record under one lock so a pass settling in between cannot
	// leave the session reported idle with a run pending.
	s.task.Schedule()
	if s.state != StateScanning {
		s.state = StateScheduled
	}
}

// Insert appends an HTML fragment, as a programmatic insert would.
func (s *Session) Insert(fragment string) {
	s.Edit(s.Markup() + fragment)
}

// InsertTOC adds the inline table of contents block in front of the first
// heading. It reports false if the document already has one.
func (s *Session) InsertTOC() (bool, error) {
	doc, err := markup.Parse(s.Markup())
	if err != nil {
		return false, err
	}
	if !doc.InsertPlaceholder() {
		return false, nil
	}
	out, err := doc.Render()
	if err != nil {
		return false, err
	}
	s.Edit(out)
	return true, nil
}

// Flush runs a pending synchronisation pass now. It reports false if none was
// pending.
func (s *Session) Flush() bool {
	return s.task.Flush()
}

// Markup returns the current markup.
func (s *Session) Markup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markup
}

// Headings returns the headings found by the last pass.
func (s *Session) Headings() []models.Heading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Heading, len(s.headings))
	copy(out, s.headings)
	return out
}

// Panel builds a fresh standalone navigation panel from the last pass.
func (s *Session) Panel() *toc.Panel {
	return toc.NewPanel(s.Headings())
}

// State returns the current state. An idle session with a run armed reports
// scheduled.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle && s.task.Pending() {
		return StateScheduled
	}
	return s.state
}

// Scans returns the number of completed synchronisation passes.
func (s *Session) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// Close ends the session. Pending passes are dropped and later edits are
// ignored.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.task.Close()
}

func (s *Session) scan() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = StateScanning
	snapshot := s.markup
	version := s.version
	s.mu.Unlock()

	res, err := tocsync.Sync(snapshot, s.syncOpts)

	s.mu.Lock()
	s.scans++
	if err != nil {
		s.state = s.settledState()
		s.mu.Unlock()
		s.logger.Warn("editor: sync failed", slog.String("error", err.Error()))
		return
	}
	// A newer edit has its own pass queued; only its markup may be replaced
	// by that pass.
	if version == s.version {
		s.markup = res.Markup
	}
	s.headings = res.Headings
	s.state = s.settledState()
	latest := s.markup
	s.mu.Unlock()

	s.logger.Debug("editor: synced",
		slog.Int("headings", len(res.Headings)),
		slog.Int("assigned", res.Assigned),
		slog.Bool("inlined", res.Inlined))

	s.notify(latest)
	if s.onSync != nil {
		s.onSync(res)
	}
}

// settledState must be called with mu held.
func (s *Session) settledState() State {
	if s.task.Pending() {
		return StateScheduled
	}
	return StateIdle
}

func (s *Session) notify(content string) {
	if s.onChange != nil {
		s.onChange(content)
	}
}
