package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vowpost/internal/apperr"
	"github.com/starford/vowpost/internal/checksum"
	"github.com/starford/vowpost/internal/docservice"
	"github.com/starford/vowpost/internal/editor"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *docservice.Service
	sessions *editor.Manager
	basePath string
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service, sessions *editor.Manager, basePath string) *Handler {
	return &Handler{svc: svc, sessions: sessions, basePath: strings.TrimSuffix(basePath, "/")}
}

// docPath extracts the document path from the URL (everything after the
// route prefix). Supports encoded slashes from OpenAPI clients
// (e.g. venues%2Fbarn.html).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeServiceError maps domain errors to HTTP statuses and logs the rest.
func writeServiceError(w http.ResponseWriter, err error, op, path string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("document already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrInvalidFormat), errors.Is(err, apperr.ErrInvalidPath):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func ifMatch(r *http.Request) string {
	return checksum.ParseETag(r.Header.Get("If-Match"))
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List posts with optional pagination and filtering
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated, title)
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	tag := q.Get("tag")
	sort := q.Get("sort")

	items, total, err := h.svc.List(r.Context(), limit, offset, tag, sort)
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Get a single post by path
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.Get(r.Context(), path)
	if err != nil {
		writeServiceError(w, err, "get document", path)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, http.StatusOK, doc)
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a new post; headings are identified before it is stored
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Post to create"
//	@Success		201		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	doc, err := h.svc.Create(r.Context(), req.Path, []byte(req.Content), req.Format)
	if err != nil {
		writeServiceError(w, err, "create document", req.Path)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, http.StatusCreated, doc)
}

// UpdateDocument handles PUT /api/documents/*.
//
//	@Summary		Update a post with optimistic concurrency
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string					true	"Document path"
//	@Param			If-Match	header	string					false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateDocumentRequest	true	"Updated content"
//	@Success		200		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [put]
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	doc, err := h.svc.Update(r.Context(), path, []byte(req.Content), req.Format, ifMatch(r))
	if err != nil {
		writeServiceError(w, err, "update document", path)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, http.StatusOK, doc)
}

// MoveDocument handles PATCH /api/documents/*.
//
//	@Summary		Rename a post; heading ids are kept
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string				true	"Current document path"
//	@Param			body	body		MoveDocumentRequest	true	"New path"
//	@Success		200		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [patch]
func (h *Handler) MoveDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req MoveDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("new path is required"))
		return
	}
	doc, err := h.svc.Move(r.Context(), path, req.Path)
	if err != nil {
		writeServiceError(w, err, "move document", path)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/*.
//
//	@Summary		Delete a post
//	@Tags			documents
//	@Param			path	path	string	true	"Document path"
//	@Success		204		"Document deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), path); err != nil {
		writeServiceError(w, err, "delete document", path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across posts, or across headings with scope=headings
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			scope	query		string	false	"What to search"	Enums(documents, headings)
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if r.URL.Query().Get("scope") == "headings" {
		hits, err := h.svc.SearchHeadings(r.Context(), q, limit)
		if err != nil {
			slog.Error("heading search failed", slog.String("query", q), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		out := make([]HeadingSearchResult, 0, len(hits))
		for _, hit := range hits {
			out = append(out, HeadingSearchResult{
				Path:    hit.Path,
				Title:   hit.Title,
				Heading: hit.Heading,
				URL:     h.gotoURL(hit.Path, hit.Heading.ID),
			})
		}
		writeJSON(w, http.StatusOK, HeadingSearchResponse{Results: out})
		return
	}

	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	out := make([]SearchResult, 0, len(results))
	for _, res := range results {
		out = append(out, SearchResult{Path: res.Path, Title: res.Title, Snippet: res.Snippet})
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}
