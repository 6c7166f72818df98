package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vowpost/internal/apperr"
	"github.com/starford/vowpost/internal/checksum"
	"github.com/starford/vowpost/internal/editor"
	"github.com/starford/vowpost/internal/models"
)

func sessionView(m *editor.Managed) SessionResponse {
	headings := m.Headings()
	if headings == nil {
		headings = []models.Heading{}
	}
	return SessionResponse{
		ID:       m.ID,
		Path:     m.Path,
		State:    m.State().String(),
		Scans:    m.Scans(),
		Markup:   m.Markup(),
		Headings: headings,
		Panel:    m.Panel().Visible(),
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*editor.Managed, bool) {
	m, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return nil, false
	}
	return m, true
}

// OpenSession handles POST /api/sessions.
//
//	@Summary		Open an editing session
//	@Description	Starts a debounced synchronisation session. Without content, the body of the post at path is loaded.
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Initial state"
//	@Success		201		{object}	SessionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	initial := req.Content
	if initial == "" && req.Path != "" {
		doc, err := h.svc.Get(r.Context(), req.Path)
		switch {
		case err == nil:
			initial = doc.Body
		case errors.Is(err, apperr.ErrNotFound):
			// A new post; the session starts empty.
		default:
			writeServiceError(w, err, "open session", req.Path)
			return
		}
	}
	m := h.sessions.Open(req.Path, initial)
	w.Header().Set("Location", h.basePath+"/sessions/"+m.ID)
	writeJSON(w, http.StatusCreated, sessionView(m))
}

// GetSession handles GET /api/sessions/{id}.
//
//	@Summary		Get the state of an editing session
//	@Tags			sessions
//	@Produce		json
//	@Param			id		path		string	true	"Session id"
//	@Param			flush	query		bool	false	"Run a pending pass before answering"
//	@Success		200		{object}	SessionResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	if flush, _ := strconv.ParseBool(r.URL.Query().Get("flush")); flush {
		m.Flush()
	}
	writeJSON(w, http.StatusOK, sessionView(m))
}

// EditSession handles PUT /api/sessions/{id}.
//
//	@Summary		Replace or extend the markup of an editing session
//	@Description	The change is accepted immediately; headings are refreshed once edits pause.
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Session id"
//	@Param			body	body		EditSessionRequest	true	"Edit"
//	@Success		202		{object}	SessionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [put]
func (h *Handler) EditSession(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	var req EditSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	switch {
	case req.Insert != "":
		m.Insert(req.Insert)
	default:
		m.Edit(req.Content)
	}
	writeJSON(w, http.StatusAccepted, sessionView(m))
}

// CloseSession handles DELETE /api/sessions/{id}.
//
//	@Summary		Close an editing session
//	@Tags			sessions
//	@Param			id	path	string	true	"Session id"
//	@Success		204	"Session closed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InsertSessionTOC handles POST /api/sessions/{id}/toc.
//
//	@Summary		Insert the inline table of contents block
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session id"
//	@Success		200	{object}	TOCInsertResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/toc [post]
func (h *Handler) InsertSessionTOC(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	inserted, err := m.InsertTOC()
	if err != nil {
		slog.Error("insert toc failed", slog.String("session", m.ID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, TOCInsertResponse{Inserted: inserted, Session: sessionView(m)})
}

// CommitSession handles POST /api/sessions/{id}/commit.
//
//	@Summary		Store the markup of an editing session into its post
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Session id"
//	@Param			body	body		CommitSessionRequest	false	"Concurrency check"
//	@Success		200		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/commit [post]
func (h *Handler) CommitSession(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	if m.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("session has no document path"))
		return
	}
	var req CommitSessionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.IfMatch == "" {
		req.IfMatch = ifMatch(r)
	}

	m.Flush()
	doc, err := h.svc.SaveBody(r.Context(), m.Path, m.Markup(), req.IfMatch)
	if err != nil {
		writeServiceError(w, err, "commit session", m.Path)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, http.StatusOK, doc)
}
