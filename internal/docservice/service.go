// Package docservice coordinates storage, indexing and heading
// synchronisation for stored posts. Every write runs a synchronisation pass
// first, so stored markup always has an id on every heading and an up to date
// inline table of contents.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/starford/vowpost/internal/apperr"
	"github.com/starford/vowpost/internal/checksum"
	"github.com/starford/vowpost/internal/index"
	"github.com/starford/vowpost/internal/markdown"
	"github.com/starford/vowpost/internal/models"
	"github.com/starford/vowpost/internal/parser"
	"github.com/starford/vowpost/internal/storage"
	"github.com/starford/vowpost/internal/toc"
	"github.com/starford/vowpost/internal/tocsync"
)

// Input formats accepted by Create, Update and Preview.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// Event kinds passed to an EventSink.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventSink receives document change notifications.
type EventSink interface {
	PublishDocumentEvent(kind, path string)
}

// DocumentDetail is the full representation of a post.
type DocumentDetail struct {
	Path        string           `json:"path"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	Body        string           `json:"body"`
	Checksum    string           `json:"checksum"`
	Tags        []string         `json:"tags"`
	Frontmatter map[string]any   `json:"frontmatter,omitempty"`
	Headings    []models.Heading `json:"headings"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	Path         string    `json:"path"`
	Title        string    `json:"title"`
	Checksum     string    `json:"checksum"`
	Tags         []string  `json:"tags"`
	HeadingCount int       `json:"heading_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Outline is the navigation view of a stored post.
type Outline struct {
	Path     string           `json:"path"`
	Title    string           `json:"title"`
	Headings []models.Heading `json:"headings"`
	Tree     []*toc.Node      `json:"tree"`
	// Unsynced counts headings without an id, which happens only for files
	// edited outside the service.
	Unsynced int `json:"unsynced"`
}

// Option configures a Service.
type Option func(*Service)

// WithSyncOptions sets the options used for every synchronisation pass.
func WithSyncOptions(opts tocsync.Options) Option {
	return func(s *Service) { s.syncOpts = opts }
}

// WithEvents registers a sink for document change events.
func WithEvents(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       index.DocumentIndex
	syncOpts tocsync.Options
	events   EventSink
	logger   *slog.Logger
}

// NewService creates a new document service.
func NewService(store storage.Provider, db index.DocumentIndex, opts ...Option) *Service {
	s := &Service{store: store, db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncOptions returns the options used for synchronisation passes.
func (s *Service) SyncOptions() tocsync.Options {
	return s.syncOpts
}

// Get reads a post from storage and parses it.
func (s *Service) Get(_ context.Context, path string) (*DocumentDetail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(path, data)
}

// Create synchronises and writes a new post, then indexes it.
func (s *Service) Create(_ context.Context, path string, content []byte, format string) (*DocumentDetail, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	data, err := s.prepare(content, format)
	if err != nil {
		return nil, err
	}
	if err := s.persist(path, data, EventCreated); err != nil {
		return nil, err
	}
	return s.buildDetail(path, data)
}

// Update synchronises and writes new content with optimistic concurrency:
// a non-empty ifMatch must equal the checksum of the stored file.
func (s *Service) Update(_ context.Context, path string, content []byte, format, ifMatch string) (*DocumentDetail, error) {
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(existing, ifMatch) {
		return nil, apperr.ErrConflict
	}
	data, err := s.prepare(content, format)
	if err != nil {
		return nil, err
	}
	if err := s.persist(path, data, EventUpdated); err != nil {
		return nil, err
	}
	return s.buildDetail(path, data)
}

// SaveBody stores an HTML body under path, keeping the front matter of the
// stored post if there is one. It creates the post when it does not exist.
func (s *Service) SaveBody(ctx context.Context, path, body, ifMatch string) (*DocumentDetail, error) {
	existing, err := s.read(path)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		if ifMatch != "" {
			return nil, apperr.ErrConflict
		}
		return s.Create(ctx, path, []byte(body), FormatHTML)
	case err != nil:
		return nil, err
	}
	res, err := parser.Parse(existing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidFormat, err)
	}
	return s.Update(ctx, path, parser.Join(res.Header, body), FormatHTML, ifMatch)
}

// Move renames a post. Its index entry follows it and subscribers see the
// old path deleted and the new one created. Heading ids are unaffected.
func (s *Service) Move(_ context.Context, oldPath, newPath string) (*DocumentDetail, error) {
	if err := validatePath(newPath); err != nil {
		return nil, err
	}
	if err := s.store.Move(oldPath, newPath); err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, apperr.ErrNotFound
		case errors.Is(err, os.ErrExist):
			return nil, apperr.ErrAlreadyExists
		}
		return nil, err
	}
	if err := s.db.DeleteDocument(oldPath); err != nil {
		return nil, err
	}
	data, err := s.read(newPath)
	if err != nil {
		return nil, err
	}
	if err := s.IndexFile(newPath, data); err != nil {
		return nil, err
	}
	s.publish(EventDeleted, oldPath)
	s.publish(EventCreated, newPath)
	return s.buildDetail(newPath, data)
}

// Delete removes a post from storage and index.
func (s *Service) Delete(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteDocument(path); err != nil {
		return err
	}
	s.publish(EventDeleted, path)
	return nil
}

// List returns paginated posts with optional tag filter.
func (s *Service) List(_ context.Context, limit, offset int, tag, sort string) ([]DocumentListItem, int, error) {
	rows, total, err := s.db.ListDocuments(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]DocumentListItem, len(rows))
	for i, r := range rows {
		items[i] = DocumentListItem{
			Path:         r.Path,
			Title:        r.Title,
			Checksum:     r.Checksum,
			Tags:         nonNilSlice(r.Tags),
			HeadingCount: r.HeadingCount,
			UpdatedAt:    r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// SearchHeadings finds headings across all posts.
func (s *Service) SearchHeadings(_ context.Context, query string, limit int) ([]index.HeadingHit, error) {
	return s.db.SearchHeadings(query, limit)
}

// Outline returns the headings of a stored post and their nesting. The file
// is the source of truth; the index is not consulted.
func (s *Service) Outline(_ context.Context, path string) (*Outline, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidFormat, err)
	}
	out := &Outline{
		Path:     path,
		Title:    res.Title,
		Headings: nonNilSlice(res.Headings),
		Tree:     nonNilSlice(toc.Build(res.Headings)),
	}
	for _, h := range res.Headings {
		if h.ID == "" {
			out.Unsynced++
		}
	}
	return out, nil
}

// HasAnchor reports whether a stored post has a heading with the given id.
// It returns apperr.ErrNotFound when the post itself does not exist.
func (s *Service) HasAnchor(_ context.Context, path, id string) (bool, error) {
	row, err := s.db.GetDocument(path)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, apperr.ErrNotFound
	}
	return s.db.HasAnchor(path, id)
}

// Preview runs a synchronisation pass over content without storing it.
// Front matter, if any, is stripped from the returned markup.
func (s *Service) Preview(_ context.Context, content []byte, format string) (*tocsync.Result, error) {
	_, body, err := s.convert(content, format)
	if err != nil {
		return nil, err
	}
	res, err := tocsync.Sync(body, s.syncOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidFormat, err)
	}
	return res, nil
}

// IndexFile parses data and upserts it into the index.
func (s *Service) IndexFile(path string, data []byte) error {
	return index.IndexFile(s.db, path, data)
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// prepare converts content to HTML and runs a synchronisation pass over the
// body, keeping the front matter header as is.
func (s *Service) prepare(content []byte, format string) ([]byte, error) {
	header, body, err := s.convert(content, format)
	if err != nil {
		return nil, err
	}
	res, err := tocsync.Sync(body, s.syncOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidFormat, err)
	}
	if res.Assigned > 0 || res.Inlined {
		s.logger.Debug("docservice: synced",
			slog.Int("assigned", res.Assigned),
			slog.Bool("inlined", res.Inlined))
	}
	return parser.Join(header, res.Markup), nil
}

func (s *Service) convert(content []byte, format string) (header, body string, err error) {
	res, err := parser.Parse(content)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", apperr.ErrInvalidFormat, err)
	}
	switch strings.ToLower(format) {
	case "", FormatHTML:
		return res.Header, res.Body, nil
	case FormatMarkdown, "md":
		html, err := markdown.ToHTML(res.Body)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", apperr.ErrInvalidFormat, err)
		}
		return res.Header, html, nil
	default:
		return "", "", fmt.Errorf("%w: unknown format %q", apperr.ErrInvalidFormat, format)
	}
}

func (s *Service) persist(path string, data []byte, kind string) error {
	if err := s.store.Write(path, data); err != nil {
		return err
	}
	if err := s.IndexFile(path, data); err != nil {
		return err
	}
	s.publish(kind, path)
	return nil
}

func (s *Service) publish(kind, path string) {
	if s.events != nil {
		s.events.PublishDocumentEvent(kind, path)
	}
}

// buildDetail constructs a DocumentDetail from raw data without re-reading the file.
func (s *Service) buildDetail(path string, data []byte) (*DocumentDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{
		Path:        path,
		Title:       res.Title,
		Content:     string(data),
		Body:        res.Body,
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Headings:    nonNilSlice(res.Headings),
		UpdatedAt:   time.Now(),
	}, nil
}

func validatePath(path string) error {
	if !storage.IsDocument(path) {
		return fmt.Errorf("%w: path must end in %s", apperr.ErrInvalidFormat, storage.Ext)
	}
	return nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
