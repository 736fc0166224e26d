package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/k9cms/internal/cmserr"
	"github.com/yanizio/k9cms/internal/navigation"
)

// GET /navigation?visible&featured&level&parent_id&sort_by&tree
func (h *Handler) listNavigation(w http.ResponseWriter, r *http.Request) {
	level, err := queryInt(r, "level")
	if err != nil {
		fail(w, r, err)
		return
	}
	opts := navigation.ListOptions{
		VisibleOnly:  queryBool(r, "visible"),
		FeaturedOnly: queryBool(r, "featured"),
		Level:        level,
		SortBy:       r.URL.Query().Get("sort_by"),
	}
	if p := r.URL.Query().Get("parent_id"); p != "" {
		opts.ParentID = &p
	}

	if queryBool(r, "tree") {
		tree, err := h.nav.Tree(r.Context(), opts)
		if err != nil {
			fail(w, r, err)
			return
		}
		list(w, tree)
		return
	}
	items, err := h.nav.List(r.Context(), opts)
	if err != nil {
		fail(w, r, err)
		return
	}
	list(w, items)
}

func (h *Handler) getNavigation(w http.ResponseWriter, r *http.Request) {
	it, err := h.nav.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	item(w, it)
}

func (h *Handler) createNavigation(w http.ResponseWriter, r *http.Request) {
	var in navigation.NewItem
	if err := decode(r, &in, false); err != nil {
		fail(w, r, err)
		return
	}
	id, err := h.nav.Create(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	created(w, id, "Navigation item created successfully")
}

// PATCH /navigation?action=reorder  {"items":[{"id","display_order"}]}
func (h *Handler) patchNavigation(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "reorder" {
		invalidAction(w, r)
		return
	}
	var body struct {
		Items *[]navigation.OrderUpdate `json:"items"`
	}
	if err := decode(r, &body, false); err != nil {
		fail(w, r, err)
		return
	}
	if body.Items == nil {
		fail(w, r, cmserr.Validation("Items must be an array"))
		return
	}
	if err := h.nav.Reorder(r.Context(), *body.Items); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Navigation items reordered successfully")
}

// PUT /navigation/{id}[?action=toggle_visibility]
func (h *Handler) putNavigation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch r.URL.Query().Get("action") {
	case "toggle_visibility":
		if err := h.nav.ToggleVisibility(r.Context(), id); err != nil {
			fail(w, r, err)
			return
		}
		done(w, "Navigation item visibility toggled")
	case "":
		var p navigation.Patch
		if err := decode(r, &p, false); err != nil {
			fail(w, r, err)
			return
		}
		if err := h.nav.Update(r.Context(), id, p); err != nil {
			fail(w, r, err)
			return
		}
		done(w, "Navigation item updated successfully")
	default:
		invalidAction(w, r)
	}
}

func (h *Handler) deleteNavigation(w http.ResponseWriter, r *http.Request) {
	if err := h.nav.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Navigation item deleted successfully")
}
