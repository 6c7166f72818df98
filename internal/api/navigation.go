package api

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/starford/vowpost/internal/markup"
	"github.com/starford/vowpost/internal/toc"
)

// viewPolicy only lets the page's own nonce-tagged script run.
const viewPolicy = "default-src 'none'; img-src 'self' data: https:; style-src 'self' 'unsafe-inline'; " +
	"script-src 'nonce-%s'; base-uri 'none'; form-action 'none'; frame-ancestors 'none'"

var viewTemplate = template.Must(template.New("view").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<aside class="toc-sidebar">{{.Panel}}</aside>
<article class="post">{{.Body}}</article>
<script nonce="{{.Nonce}}">
document.querySelectorAll(".toc-panel a[data-target]").forEach(function (a) {
  a.addEventListener("click", function (ev) {
    ev.preventDefault();
    var target = document.getElementById(a.dataset.target);
    if (target) {
      target.scrollIntoView({behavior: "smooth", block: "start"});
      history.replaceState(null, "", "#" + a.dataset.target);
    }
  });
});
</script>
</body>
</html>
`))

type viewData struct {
	Title string
	Panel template.HTML
	Body  template.HTML
	Nonce string
}

// Outline handles GET /api/outline/*.
//
//	@Summary		Get the headings and nested table of contents of a post
//	@Tags			navigation
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	OutlineResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline/{path} [get]
func (h *Handler) Outline(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	out, err := h.svc.Outline(r.Context(), path)
	if err != nil {
		writeServiceError(w, err, "outline", path)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// View handles GET /api/view/*: the reader page with the post body and a
// standalone navigation panel.
//
//	@Summary		Render a post with its navigation panel
//	@Tags			navigation
//	@Produce		html
//	@Param			path	path	string	true	"Document path"
//	@Success		200		"HTML page"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/view/{path} [get]
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.Get(r.Context(), path)
	if err != nil {
		writeServiceError(w, err, "view", path)
		return
	}
	title := doc.Title
	if title == "" {
		title = path
	}

	body, err := sanitizeBody(doc.Body)
	if err != nil {
		slog.Error("view sanitize failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	nonce := uuid.NewString()
	var buf bytes.Buffer
	err = viewTemplate.Execute(&buf, viewData{
		Title: title,
		Panel: template.HTML(toc.NewPanel(doc.Headings).RenderHTML()),
		Body:  template.HTML(body),
		Nonce: nonce,
	})
	if err != nil {
		slog.Error("view render failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", fmt.Sprintf(viewPolicy, nonce))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// sanitizeBody strips active content from a stored body before it is served
// as a page.
func sanitizeBody(body string) (string, error) {
	d, err := markup.Parse(body)
	if err != nil {
		return "", err
	}
	d.Sanitize()
	return d.Render()
}

// Goto handles GET /api/goto/*?id=: it redirects to the heading inside the
// reader page. A heading that no longer exists is not an error; the response
// is 204 and the caller stays where it is.
//
//	@Summary		Navigate to a heading of a post
//	@Tags			navigation
//	@Param			path	path	string	true	"Document path"
//	@Param			id		query	string	true	"Heading id"
//	@Success		302		"Redirect to the heading"
//	@Success		204		"Heading not found; nothing to do"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/goto/{path} [get]
func (h *Handler) Goto(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	id := r.URL.Query().Get("id")
	if path == "" || id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and id are required"))
		return
	}
	ok, err := h.svc.HasAnchor(r.Context(), path, id)
	if err != nil {
		writeServiceError(w, err, "goto", path)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	target := url.URL{Path: h.basePath + "/view/" + path, Fragment: id}
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// Preview handles POST /api/preview.
//
//	@Summary		Run a synchronisation pass without storing the result
//	@Tags			navigation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PreviewRequest	true	"Markup to synchronise"
//	@Success		200		{object}	PreviewResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preview [post]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Preview(r.Context(), []byte(req.Content), req.Format)
	if err != nil {
		writeServiceError(w, err, "preview", "")
		return
	}
	tree := toc.Build(res.Headings)
	if tree == nil {
		tree = []*toc.Node{}
	}
	writeJSON(w, http.StatusOK, PreviewResponse{
		Markup:   res.Markup,
		Headings: res.Headings,
		Assigned: res.Assigned,
		Inlined:  res.Inlined,
		Tree:     tree,
	})
}

func (h *Handler) gotoURL(path, id string) string {
	u := url.URL{Path: h.basePath + "/goto/" + path, RawQuery: url.Values{"id": {id}}.Encode()}
	return u.String()
}
