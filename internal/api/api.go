// internal/api/api.go
//
// HTTP route layer.
//
/*
Context
--------
Thin chi handlers over the four content services.  Handlers parse the
request, call one service method, and map the result onto the JSON
envelope in respond.go.  No business rule lives here.

Mount the router at /api:

	r.Mount("/api", api.New(deps).Routes())

Mutations that are not plain CRUD are selected with ?action=… on the item
route (toggle_visibility, reorder, duplicate, increment_views,
increment_usage); an unknown action is a 400.
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/k9cms/internal/blocks"
	"github.com/yanizio/k9cms/internal/cmserr"
	"github.com/yanizio/k9cms/internal/components"
	"github.com/yanizio/k9cms/internal/navigation"
	"github.com/yanizio/k9cms/internal/pages"
)

// Pinger reports store health for /api/ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the handler to its services.
type Deps struct {
	Navigation *navigation.Service
	Pages      *pages.Service
	Blocks     *blocks.Service
	Components *components.Service
	Store      Pinger
}

// Handler serves the content API.
type Handler struct {
	nav    *navigation.Service
	pages  *pages.Service
	blocks *blocks.Service
	comps  *components.Service
	store  Pinger
}

// New returns a Handler over d.
func New(d Deps) *Handler {
	return &Handler{
		nav:    d.Navigation,
		pages:  d.Pages,
		blocks: d.Blocks,
		comps:  d.Components,
		store:  d.Store,
	}
}

// Routes returns the API router, relative to its mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)

	r.Route("/navigation", func(r chi.Router) {
		r.Get("/", h.listNavigation)
		r.Post("/", h.createNavigation)
		r.Patch("/", h.patchNavigation)
		r.Get("/{id}", h.getNavigation)
		r.Put("/{id}", h.putNavigation)
		r.Delete("/{id}", h.deleteNavigation)
	})

	r.Route("/pages", func(r chi.Router) {
		r.Get("/", h.listPages)
		r.Post("/", h.createPage)
		r.Get("/slug/{slug}", h.getPageBySlug)
		r.Get("/{id}", h.getPage)
		r.Put("/{id}", h.updatePage)
		r.Delete("/{id}", h.deletePage)
		r.Post("/{id}", h.pageAction)
	})

	r.Route("/blocks", func(r chi.Router) {
		r.Get("/", h.listBlocks)
		r.Post("/", h.createBlock)
		r.Patch("/", h.patchBlocks)
		r.Get("/{id}", h.getBlock)
		r.Put("/{id}", h.putBlock)
		r.Delete("/{id}", h.deleteBlock)
		r.Post("/{id}", h.blockAction)
	})

	r.Route("/components", func(r chi.Router) {
		r.Get("/", h.listComponents)
		r.Post("/", h.createComponent)
		r.Get("/{id}", h.getComponent)
		r.Put("/{id}", h.updateComponent)
		r.Delete("/{id}", h.deleteComponent)
		r.Post("/{id}", h.componentAction)
		r.Get("/{id}/blocks", h.listBlockConfigurations)
		r.Post("/{id}/blocks", h.createBlockConfiguration)
		r.Put("/{id}/blocks/{configID}", h.updateBlockConfiguration)
		r.Delete("/{id}/blocks/{configID}", h.deleteBlockConfiguration)
	})

	r.Route("/component-instances", func(r chi.Router) {
		r.Get("/", h.listInstances)
		r.Post("/", h.createInstance)
		r.Delete("/{id}", h.deleteInstance)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	done(w, "ok")
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		fail(w, r, cmserr.Internal("ping store", err))
		return
	}
	done(w, "ready")
}

func invalidAction(w http.ResponseWriter, r *http.Request) {
	fail(w, r, cmserr.Validation("Invalid action"))
}
