package api

import (
	"github.com/starford/vowpost/internal/docservice"
	"github.com/starford/vowpost/internal/models"
	"github.com/starford/vowpost/internal/toc"
)

// CreateDocumentRequest is the request body for creating a post.
type CreateDocumentRequest struct {
	Path    string `json:"path" example:"venues/barn.html" validate:"required"`
	Content string `json:"content" example:"<h1>The Barn</h1><p>Rustic charm.</p>" validate:"required"`
	Format  string `json:"format,omitempty" example:"html" enums:"html,markdown"`
}

// UpdateDocumentRequest is the request body for updating a post.
type UpdateDocumentRequest struct {
	Content string `json:"content" example:"<h1>The Barn</h1><h2>Capacity</h2>" validate:"required"`
	Format  string `json:"format,omitempty" example:"html" enums:"html,markdown"`
}

// MoveDocumentRequest is the request body for renaming a post.
type MoveDocumentRequest struct {
	Path string `json:"path" example:"venues/the-barn.html" validate:"required"`
}

// DocumentDetail is the full post response type (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentListItem = docservice.DocumentListItem

// DocumentListResponse wraps paginated post listings.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"venues/barn.html" validate:"required"`
	Title   string `json:"title" example:"The Barn" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// HeadingSearchResult is a heading matched by a scope=headings search.
type HeadingSearchResult struct {
	Path    string         `json:"path" example:"venues/barn.html" validate:"required"`
	Title   string         `json:"title" example:"The Barn"`
	Heading models.Heading `json:"heading" validate:"required"`
	URL     string         `json:"url" example:"/api/goto/venues/barn.html?id=heading-1" validate:"required"`
}

// HeadingSearchResponse wraps heading search results.
type HeadingSearchResponse struct {
	Results []HeadingSearchResult `json:"results" validate:"required"`
}

// OutlineResponse is the navigation view of a stored post.
type OutlineResponse = docservice.Outline

// PreviewRequest is the request body for a synchronisation preview.
type PreviewRequest struct {
	Content string `json:"content" example:"<h1>Intro</h1><h2>Details</h2>" validate:"required"`
	Format  string `json:"format,omitempty" example:"html" enums:"html,markdown"`
}

// PreviewResponse is the result of a synchronisation pass that was not stored.
type PreviewResponse struct {
	Markup   string           `json:"markup" validate:"required"`
	Headings []models.Heading `json:"headings" validate:"required"`
	Assigned int              `json:"assigned"`
	Inlined  bool             `json:"inlined"`
	Tree     []*toc.Node      `json:"tree"`
}

// OpenSessionRequest opens an editing session. When Content is empty and
// Path names a stored post, the post's body is loaded.
type OpenSessionRequest struct {
	Path    string `json:"path,omitempty" example:"venues/barn.html"`
	Content string `json:"content,omitempty" example:"<h1>Draft</h1>"`
}

// EditSessionRequest replaces the session markup, or appends Insert to it.
type EditSessionRequest struct {
	Content string `json:"content,omitempty" example:"<h1>Draft</h1><h2>Menu</h2>"`
	Insert  string `json:"insert,omitempty" example:"<h2>Late addition</h2>"`
}

// CommitSessionRequest stores a session's markup into its post.
type CommitSessionRequest struct {
	IfMatch string `json:"if_match,omitempty" example:"3a7bd3e2360a3d..."`
}

// SessionResponse is the state of an editing session.
type SessionResponse struct {
	ID       string           `json:"id" validate:"required"`
	Path     string           `json:"path,omitempty"`
	State    string           `json:"state" example:"idle" validate:"required"`
	Scans    int              `json:"scans"`
	Markup   string           `json:"markup"`
	Headings []models.Heading `json:"headings" validate:"required"`
	Panel    []toc.Item       `json:"panel" validate:"required"`
}

// TOCInsertResponse reports whether an inline table of contents was added.
type TOCInsertResponse struct {
	Inserted bool            `json:"inserted"`
	Session  SessionResponse `json:"session"`
}
