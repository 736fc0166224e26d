package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/k9cms/internal/blocks"
	"github.com/yanizio/k9cms/internal/cmserr"
)

// GET /blocks?page_id&visible_only
func (h *Handler) listBlocks(w http.ResponseWriter, r *http.Request) {
	pageID := r.URL.Query().Get("page_id")
	if pageID == "" {
		fail(w, r, cmserr.Validation("page_id parameter is required"))
		return
	}
	bs, err := h.blocks.ListByPage(r.Context(), pageID, queryBool(r, "visible_only"))
	if err != nil {
		fail(w, r, err)
		return
	}
	list(w, bs)
}

func (h *Handler) getBlock(w http.ResponseWriter, r *http.Request) {
	b, err := h.blocks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	item(w, b)
}

func (h *Handler) createBlock(w http.ResponseWriter, r *http.Request) {
	var in blocks.NewBlock
	if err := decode(r, &in, false); err != nil {
		fail(w, r, err)
		return
	}
	id, err := h.blocks.Create(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	created(w, id, "Content block created successfully")
}

// PATCH /blocks?action=reorder  {"blocks":[{"id","display_order"}]}
func (h *Handler) patchBlocks(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "reorder" {
		invalidAction(w, r)
		return
	}
	var body struct {
		Blocks *[]blocks.OrderUpdate `json:"blocks"`
	}
	if err := decode(r, &body, false); err != nil {
		fail(w, r, err)
		return
	}
	if body.Blocks == nil {
		fail(w, r, cmserr.Validation("Blocks must be an array"))
		return
	}
	if err := h.blocks.Reorder(r.Context(), *body.Blocks); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Content blocks reordered successfully")
}

// PUT /blocks/{id}[?action=toggle_visibility]
func (h *Handler) putBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch r.URL.Query().Get("action") {
	case "toggle_visibility":
		visible, err := h.blocks.ToggleVisibility(r.Context(), id)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			Success: true,
			Data:    map[string]bool{"is_visible": visible},
			Message: "Block visibility toggled",
		})
	case "":
		var p blocks.Patch
		if err := decode(r, &p, false); err != nil {
			fail(w, r, err)
			return
		}
		if err := h.blocks.Update(r.Context(), id, p); err != nil {
			fail(w, r, err)
			return
		}
		done(w, "Content block updated successfully")
	default:
		invalidAction(w, r)
	}
}

func (h *Handler) deleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.blocks.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Content block deleted successfully")
}

// POST /blocks/{id}?action=duplicate  {"newPageId":"…"}
func (h *Handler) blockAction(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "duplicate" {
		invalidAction(w, r)
		return
	}
	var body struct {
		NewPageID string `json:"newPageId"`
	}
	if err := decode(r, &body, true); err != nil {
		fail(w, r, err)
		return
	}
	id, err := h.blocks.Duplicate(r.Context(), chi.URLParam(r, "id"), body.NewPageID)
	if err != nil {
		fail(w, r, err)
		return
	}
	created(w, id, "Block duplicated successfully")
}
