// internal/navigation/service.go
//
// Navigation Service.
//
/*
Context
--------
Owns the `navigation` collection and its invariants:

  • level 1 ⇔ no parent_id; level 2 ⇔ parent_id names an existing level-1
    item,
  • href is unique across the whole menu,
  • deleting an item deletes its direct children,
  • reorder writes every new position in one atomic batch.

The store is injected; the service keeps no state of its own.
*/
package navigation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yanizio/k9cms/internal/cmserr"
	"github.com/yanizio/k9cms/internal/docstore"
	"github.com/yanizio/k9cms/internal/metrics"
	"github.com/yanizio/k9cms/internal/validation"
)

// Service manages navigation items.
type Service struct {
	store docstore.Store
}

// NewService returns a Service over store.
func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

/*──────────────────────────── reads ────────────────────────────────────────*/

// List returns items matching opts, ordered by opts.SortBy.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Item, error) {
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "display_order"
	}
	if !sortable[sortBy] {
		return nil, cmserr.Validation("Invalid sort_by: %s", sortBy)
	}

	q := docstore.Query{OrderBy: sortBy}
	if opts.VisibleOnly {
		q.Filters = append(q.Filters, docstore.Eq("is_visible", true))
	}
	if opts.FeaturedOnly {
		q.Filters = append(q.Filters, docstore.Eq("is_featured", true))
	}
	if opts.Level != 0 {
		q.Filters = append(q.Filters, docstore.Eq("level", opts.Level))
	}
	if opts.ParentID != nil {
		q.Filters = append(q.Filters, docstore.Eq("parent_id", *opts.ParentID))
	}

	docs, err := s.store.List(ctx, Collection, q)
	if err != nil {
		return nil, cmserr.Internal("list navigation items", err)
	}
	items := make([]Item, 0, len(docs))
	for _, d := range docs {
		var it Item
		if err := d.Decode(&it); err != nil {
			return nil, cmserr.Internal("decode navigation item", err)
		}
		items = append(items, it)
	}
	return items, nil
}

// Tree returns List(opts) arranged by BuildTree.
func (s *Service) Tree(ctx context.Context, opts ListOptions) ([]Node, error) {
	items, err := s.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return BuildTree(items), nil
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	d, err := s.store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, cmserr.NotFound("Navigation item")
	}
	if err != nil {
		return nil, cmserr.Internal("get navigation item", err)
	}
	var it Item
	if err := d.Decode(&it); err != nil {
		return nil, cmserr.Internal("decode navigation item", err)
	}
	return &it, nil
}

/*──────────────────────────── writes ───────────────────────────────────────*/

// Create validates in and stores a new item, returning its id.
func (s *Service) Create(ctx context.Context, in NewItem) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	in.normalize()
	if err := s.checkPlacement(ctx, "", in.Level, in.ParentID); err != nil {
		return "", err
	}
	if err := s.checkHref(ctx, in.Href); err != nil {
		return "", err
	}

	doc := docstore.Document{
		"label_en":            in.LabelEN,
		"label_ar":            in.LabelAR,
		"href":                in.Href,
		"level":               in.Level,
		"parent_id":           in.ParentID,
		"display_order":       derefInt(in.DisplayOrder, 0),
		"is_visible":          derefBool(in.IsVisible, true),
		"is_featured":         derefBool(in.IsFeatured, false),
		"description_en":      in.DescriptionEN,
		"description_ar":      in.DescriptionAR,
		"icon":                in.Icon,
		"page_id":             in.PageID,
		"meta_title_en":       in.MetaTitleEN,
		"meta_title_ar":       in.MetaTitleAR,
		"meta_description_en": in.MetaDescriptionEN,
		"meta_description_ar": in.MetaDescriptionAR,
	}
	id, err := s.store.Create(ctx, Collection, doc)
	if err != nil {
		return "", cmserr.Internal("create navigation item", err)
	}

	metrics.Mutation("navigation", "create")
	zap.L().Info("navigation item created", zap.String("id", id), zap.String("href", in.Href))
	return id, nil
}

// Update applies p to item id, re-checking placement and href rules
// against the merged result.
func (s *Service) Update(ctx context.Context, id string, p Patch) error {
	if err := validation.Struct(&p); err != nil {
		return err
	}
	p.normalize()
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	level, parent := cur.Level, cur.ParentID
	if p.Level != nil {
		level = *p.Level
	}
	if p.ParentID.Set {
		parent = p.ParentID.Ptr()
	}
	if level != cur.Level || p.ParentID.Set {
		if err := s.checkPlacement(ctx, id, level, parent); err != nil {
			return err
		}
	}
	if cur.Level == 1 && level == 2 {
		kids, err := s.List(ctx, ListOptions{ParentID: &id})
		if err != nil {
			return err
		}
		if len(kids) > 0 {
			return cmserr.Validation("Cannot move an item with children to level 2")
		}
	}
	if p.Href != nil && *p.Href != cur.Href {
		if err := s.checkHref(ctx, *p.Href); err != nil {
			return err
		}
	}
	if p.LabelEN != nil && *p.LabelEN == "" {
		return cmserr.Validation("Missing required fields: label_en")
	}

	doc, err := docstore.Encode(p)
	if err != nil {
		return cmserr.Internal("encode navigation patch", err)
	}
	if err := s.store.Update(ctx, Collection, id, doc); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return cmserr.NotFound("Navigation item")
		}
		return cmserr.Internal("update navigation item", err)
	}

	metrics.Mutation("navigation", "update")
	zap.L().Info("navigation item updated", zap.String("id", id))
	return nil
}

// Delete removes item id and its direct children.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	kids, err := s.store.List(ctx, Collection, docstore.Query{
		Filters: []docstore.Filter{docstore.Eq("parent_id", id)},
	})
	if err != nil {
		return cmserr.Internal("list navigation children", err)
	}
	for _, k := range kids {
		if err := s.store.Delete(ctx, Collection, k.ID()); err != nil {
			return cmserr.Internal("delete navigation child", err)
		}
	}
	if err := s.store.Delete(ctx, Collection, id); err != nil {
		return cmserr.Internal("delete navigation item", err)
	}

	metrics.Mutation("navigation", "delete")
	zap.L().Info("navigation item deleted", zap.String("id", id), zap.Int("children", len(kids)))
	return nil
}

// ToggleVisibility flips is_visible.
func (s *Service) ToggleVisibility(ctx context.Context, id string) error {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, Collection, id, docstore.Document{"is_visible": !cur.IsVisible}); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return cmserr.NotFound("Navigation item")
		}
		return cmserr.Internal("toggle navigation visibility", err)
	}
	metrics.Mutation("navigation", "toggle_visibility")
	return nil
}

// Reorder writes every display_order in one batch.  Positions are taken
// as given.
func (s *Service) Reorder(ctx context.Context, items []OrderUpdate) error {
	updates := make([]docstore.Update, 0, len(items))
	for i, it := range items {
		if it.ID == "" {
			return cmserr.Validation("Item %d is missing an id", i)
		}
		updates = append(updates, docstore.Update{
			ID:   it.ID,
			Data: docstore.Document{"display_order": it.DisplayOrder},
		})
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.store.BatchUpdate(ctx, Collection, updates); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return cmserr.NotFound("Navigation item")
		}
		return cmserr.Internal("reorder navigation items", err)
	}
	metrics.Mutation("navigation", "reorder")
	return nil
}

/*──────────────────────────── rules ────────────────────────────────────────*/

// checkPlacement enforces the level/parent invariant.  self is the item
// being edited, or "" on create.
func (s *Service) checkPlacement(ctx context.Context, self string, level int, parent *string) error {
	switch level {
	case 1:
		if parent != nil {
			return cmserr.Validation("Level 1 items cannot have a parent_id")
		}
		return nil
	case 2:
		if parent == nil || *parent == "" {
			return cmserr.Validation("Level 2 items must have a parent_id")
		}
	default:
		return cmserr.Validation("Invalid level: must be one of 1 2")
	}

	if *parent == self {
		return cmserr.Validation("An item cannot be its own parent")
	}
	p, err := s.Get(ctx, *parent)
	if cmserr.Is(err, cmserr.KindNotFound) {
		return cmserr.Validation("Parent navigation item not found")
	}
	if err != nil {
		return err
	}
	if p.Level != 1 {
		return cmserr.Validation("Parent navigation item must be level 1")
	}
	return nil
}

func (s *Service) checkHref(ctx context.Context, href string) error {
	if !ValidHref(href) {
		return cmserr.Validation("Invalid href: must start with /, http://, https://, or #")
	}
	taken, err := s.store.Exists(ctx, Collection, "href", href)
	if err != nil {
		return cmserr.Internal(fmt.Sprintf("check href %s", href), err)
	}
	if taken {
		return cmserr.Conflict("Navigation item with this href already exists")
	}
	return nil
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func derefBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
