package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/k9cms/internal/blocks"
	"github.com/yanizio/k9cms/internal/pages"
	"github.com/yanizio/k9cms/internal/requestinfo"
)

type pageWithBlocks struct {
	*pages.Page
	Blocks []blocks.Block `json:"blocks"`
}

// GET /pages?published&reusable&template&status&search
func (h *Handler) listPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ps, err := h.pages.List(r.Context(), pages.ListOptions{
		Published: queryTriBool(r, "published"),
		Reusable:  queryTriBool(r, "reusable"),
		Template:  pages.Template(q.Get("template")),
		Status:    pages.Status(q.Get("status")),
		Search:    q.Get("search"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	list(w, ps)
}

// GET /pages/{id}[?include_blocks=true]
func (h *Handler) getPage(w http.ResponseWriter, r *http.Request) {
	p, err := h.pages.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writePage(w, r, p, false)
}

// GET /pages/slug/{slug}[?include_blocks=true]; only visible blocks.
func (h *Handler) getPageBySlug(w http.ResponseWriter, r *http.Request) {
	p, err := h.pages.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writePage(w, r, p, true)
}

func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, p *pages.Page, visibleOnly bool) {
	if !queryBool(r, "include_blocks") {
		item(w, p)
		return
	}
	bs, err := h.blocks.ListByPage(r.Context(), p.ID, visibleOnly)
	if err != nil {
		fail(w, r, err)
		return
	}
	item(w, pageWithBlocks{Page: p, Blocks: bs})
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	var in pages.NewPage
	if err := decode(r, &in, false); err != nil {
		fail(w, r, err)
		return
	}
	id, err := h.pages.Create(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	created(w, id, "Page created successfully")
}

func (h *Handler) updatePage(w http.ResponseWriter, r *http.Request) {
	var p pages.Patch
	if err := decode(r, &p, false); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.pages.Update(r.Context(), chi.URLParam(r, "id"), p); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Page updated successfully")
}

func (h *Handler) deletePage(w http.ResponseWriter, r *http.Request) {
	if err := h.pages.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Page deleted successfully")
}

// POST /pages/{id}?action=duplicate|increment_views
func (h *Handler) pageAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch r.URL.Query().Get("action") {
	case "duplicate":
		var body struct {
			NewSlug string `json:"newSlug"`
		}
		if err := decode(r, &body, true); err != nil {
			fail(w, r, err)
			return
		}
		newID, err := h.pages.Duplicate(r.Context(), id, body.NewSlug)
		if err != nil {
			fail(w, r, err)
			return
		}
		created(w, newID, "Page duplicated successfully")
	case "increment_views":
		if isBot(r) {
			counted := false
			writeJSON(w, http.StatusOK, envelope{Success: true, Counted: &counted})
			return
		}
		if err := h.pages.IncrementViewCount(r.Context(), id); err != nil {
			fail(w, r, err)
			return
		}
		done(w, "View count incremented")
	default:
		invalidAction(w, r)
	}
}

func isBot(r *http.Request) bool {
	if info := requestinfo.FromContext(r.Context()); info != nil {
		return info.UA.IsBot
	}
	return requestinfo.IsBot(r.UserAgent())
}
