package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/k9cms/internal/components"
)

// GET /components?category&active&search
func (h *Handler) listComponents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cs, err := h.comps.List(r.Context(), components.ListOptions{
		Category:   components.Category(q.Get("category")),
		ActiveOnly: queryBool(r, "active"),
		Search:     q.Get("search"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	list(w, cs)
}

// GET /components/{id}[?include_blocks=true]
func (h *Handler) getComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if queryBool(r, "include_blocks") {
		c, err := h.comps.GetWithBlocks(r.Context(), id)
		if err != nil {
			fail(w, r, err)
			return
		}
		item(w, c)
		return
	}
	c, err := h.comps.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	item(w, c)
}

func (h *Handler) createComponent(w http.ResponseWriter, r *http.Request) {
	var in components.NewComponent
	if err := decode(r, &in, false); err != nil {
		fail(w, r, err)
		return
	}
	id, err := h.comps.Create(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	created(w, id, "Component created successfully")
}

func (h *Handler) updateComponent(w http.ResponseWriter, r *http.Request) {
	var p components.Patch
	if err := decode(r, &p, false); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.comps.Update(r.Context(), chi.URLParam(r, "id"), p); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Component updated successfully")
}

func (h *Handler) deleteComponent(w http.ResponseWriter, r *http.Request) {
	if err := h.comps.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Component deleted successfully")
}

// POST /components/{id}?action=increment_usage
func (h *Handler) componentAction(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "increment_usage" {
		invalidAction(w, r)
		return
	}
	if err := h.comps.IncrementUsageCount(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Usage count incremented")
}

/*──────────────────────────── block configurations ─────────────────────────*/

func (h *Handler) listBlockConfigurations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.comps.Get(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	cfgs, err := h.comps.BlockConfigurations(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	list(w, cfgs)
}

func (h *Handler) createBlockConfiguration(w http.ResponseWriter, r *http.Request) {
	var in components.NewBlockConfiguration
	if err := decode(r, &in, false); err != nil {
		fail(w, r, err)
		return
	}
	in.ComponentID = chi.URLParam(r, "id")
	id, err := h.comps.CreateBlockConfiguration(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	created(w, id, "Block configuration created successfully")
}

func (h *Handler) updateBlockConfiguration(w http.ResponseWriter, r *http.Request) {
	var p components.BlockConfigurationPatch
	if err := decode(r, &p, false); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.comps.UpdateBlockConfiguration(r.Context(), chi.URLParam(r, "configID"), p); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Block configuration updated successfully")
}

func (h *Handler) deleteBlockConfiguration(w http.ResponseWriter, r *http.Request) {
	if err := h.comps.DeleteBlockConfiguration(r.Context(), chi.URLParam(r, "configID")); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Block configuration deleted successfully")
}

/*──────────────────────────── instances ────────────────────────────────────*/

// GET /component-instances?component_id&page_id
func (h *Handler) listInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	insts, err := h.comps.Instances(r.Context(), components.InstanceFilter{
		ComponentID: q.Get("component_id"),
		PageID:      q.Get("page_id"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	list(w, insts)
}

func (h *Handler) createInstance(w http.ResponseWriter, r *http.Request) {
	var in components.NewInstance
	if err := decode(r, &in, false); err != nil {
		fail(w, r, err)
		return
	}
	id, err := h.comps.CreateInstance(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	created(w, id, "Component instance created successfully")
}

func (h *Handler) deleteInstance(w http.ResponseWriter, r *http.Request) {
	if err := h.comps.DeleteInstance(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	done(w, "Component instance deleted successfully")
}
