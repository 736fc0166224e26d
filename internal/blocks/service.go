// internal/blocks/service.go
//
// Blocks Service.
//
/*
Context
--------
Owns the `content_blocks` collection.  A block belongs to one page and may
nest under another block through `parent_block_id` (sections, columns,
tabs).

  • A block without an explicit display_order is appended: its order is the
    number of blocks already on the page, counted under a per-page lock so
    concurrent creates never collide.
  • Deleting a block deletes its whole subtree, deepest first.
  • DeletePageBlocks clears a page; the Pages Service calls it on page delete.
*/
package blocks

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/yanizio/k9cms/internal/cmserr"
	"github.com/yanizio/k9cms/internal/docstore"
	"github.com/yanizio/k9cms/internal/keylock"
	"github.com/yanizio/k9cms/internal/metrics"
	"github.com/yanizio/k9cms/internal/nullable"
	"github.com/yanizio/k9cms/internal/validation"
)

// Service manages content blocks.
type Service struct {
	store docstore.Store
	locks *keylock.Locker
}

// NewService returns a Service over store.  locks may be shared with other
// services; keys are prefixed per aggregate.
func NewService(store docstore.Store, locks *keylock.Locker) *Service {
	return &Service{store: store, locks: locks}
}

func pageKey(pageID string) string { return "blocks:" + pageID }

/*──────────────────────────── reads ────────────────────────────────────────*/

// ListByPage returns the page's blocks by display_order.
func (s *Service) ListByPage(ctx context.Context, pageID string, visibleOnly bool) ([]Block, error) {
	q := docstore.Query{
		Filters:   []docstore.Filter{docstore.Eq("page_id", pageID)},
		OrderBy:   "display_order",
		Direction: docstore.Asc,
	}
	if visibleOnly {
		q.Filters = append(q.Filters, docstore.Eq("is_visible", true))
	}
	docs, err := s.store.List(ctx, Collection, q)
	if err != nil {
		return nil, cmserr.Internal("list blocks", err)
	}
	out := make([]Block, 0, len(docs))
	for _, d := range docs {
		b, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

// Get returns block id.
func (s *Service) Get(ctx context.Context, id string) (*Block, error) {
	d, err := s.store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, cmserr.NotFound("Block")
	}
	if err != nil {
		return nil, cmserr.Internal("get block", err)
	}
	return decode(d)
}

/*──────────────────────────── writes ───────────────────────────────────────*/

// Create validates in and stores a new block, returning its id.
func (s *Service) Create(ctx context.Context, in NewBlock) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	if !in.BlockType.Valid() {
		return "", cmserr.Validation("Invalid block_type: %s", in.BlockType)
	}
	content, err := DecodeContent(in.BlockType, in.Content)
	if err != nil {
		return "", cmserr.Validation("Invalid content for %s block", in.BlockType)
	}
	layout := DefaultLayout()
	if in.Layout != nil {
		layout = *in.Layout
	}
	visible := true
	if in.IsVisible != nil {
		visible = *in.IsVisible
	}
	in.ParentBlockID = nullable.Blank(in.ParentBlockID)
	if in.ParentBlockID != nil {
		if err := s.checkParent(ctx, "", in.PageID, *in.ParentBlockID); err != nil {
			return "", err
		}
	}

	return s.insert(ctx, draft{
		pageID:  in.PageID,
		typ:     in.BlockType,
		order:   in.DisplayOrder,
		content: content,
		layout:  layout,
		parent:  in.ParentBlockID,
		visible: visible,
	})
}

type draft struct {
	pageID  string
	typ     Type
	order   *int
	content Content
	layout  Layout
	parent  *string
	visible bool
}

// insert appends d to its page under the page lock.
func (s *Service) insert(ctx context.Context, d draft) (string, error) {
	contentDoc, err := docstore.Encode(d.content)
	if err != nil {
		return "", cmserr.Internal("encode block content", err)
	}
	layoutDoc, err := docstore.Encode(d.layout)
	if err != nil {
		return "", cmserr.Internal("encode block layout", err)
	}

	var id string
	err = s.locks.Do(ctx, pageKey(d.pageID), func() error {
		order := 0
		if d.order != nil {
			order = *d.order
		} else {
			existing, err := s.store.List(ctx, Collection, docstore.Query{
				Filters: []docstore.Filter{docstore.Eq("page_id", d.pageID)},
			})
			if err != nil {
				return cmserr.Internal("count page blocks", err)
			}
			order = len(existing)
		}

		id, err = s.store.Create(ctx, Collection, docstore.Document{
			"page_id":         d.pageID,
			"block_type":      string(d.typ),
			"display_order":   order,
			"content":         contentDoc,
			"layout":          layoutDoc,
			"parent_block_id": d.parent,
			"is_visible":      d.visible,
		})
		if err != nil {
			return cmserr.Internal("create block", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	metrics.Mutation("block", "create")
	zap.L().Info("block created", zap.String("id", id), zap.String("page_id", d.pageID), zap.String("type", string(d.typ)))
	return id, nil
}

// Update applies p to block id.  Changing block_type without new content
// resets content to the new type's default.  Moving a block to another page
// takes its nested blocks along; without an explicit parent_block_id the
// moved block becomes top-level.
func (s *Service) Update(ctx context.Context, id string, p Patch) error {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	doc := docstore.Document{}
	typ := cur.BlockType
	if p.BlockType != nil && *p.BlockType != cur.BlockType {
		if !p.BlockType.Valid() {
			return cmserr.Validation("Invalid block_type: %s", *p.BlockType)
		}
		typ = *p.BlockType
		doc["block_type"] = string(typ)
	}

	var content Content
	switch {
	case len(p.Content) > 0:
		content, err = DecodeContent(typ, p.Content)
		if err != nil {
			return cmserr.Validation("Invalid content for %s block", typ)
		}
	case typ != cur.BlockType:
		content = DefaultContent(typ)
	}
	if content != nil {
		if doc["content"], err = docstore.Encode(content); err != nil {
			return cmserr.Internal("encode block content", err)
		}
	}

	if p.Layout != nil {
		if doc["layout"], err = docstore.Encode(*p.Layout); err != nil {
			return cmserr.Internal("encode block layout", err)
		}
	}
	pageID := cur.PageID
	if p.PageID != nil && *p.PageID != "" {
		pageID = *p.PageID
		doc["page_id"] = pageID
	}
	moving := pageID != cur.PageID
	parentPatch := nullable.BlankAsNull(p.ParentBlockID)
	switch {
	case parentPatch.Set:
		if parent := parentPatch.Ptr(); parent != nil {
			if err := s.checkParent(ctx, id, pageID, *parent); err != nil {
				return err
			}
		}
		doc["parent_block_id"] = parentPatch.Ptr()
	case moving && cur.ParentBlockID != nil:
		// the old parent stays on the old page
		doc["parent_block_id"] = nil
	}
	if p.DisplayOrder != nil {
		doc["display_order"] = *p.DisplayOrder
	}
	if p.IsVisible != nil {
		doc["is_visible"] = *p.IsVisible
	}

	updates := []docstore.Update{{ID: id, Data: doc}}
	if moving {
		// nested blocks follow their ancestor to the new page
		below, err := s.subtree(ctx, id)
		if err != nil {
			return err
		}
		for _, d := range below[1:] {
			updates = append(updates, docstore.Update{ID: d, Data: docstore.Document{"page_id": pageID}})
		}
	}

	if err := s.store.BatchUpdate(ctx, Collection, updates); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return cmserr.NotFound("Block")
		}
		return cmserr.Internal("update block", err)
	}
	metrics.Mutation("block", "update")
	zap.L().Info("block updated", zap.String("id", id), zap.Int("moved_descendants", len(updates)-1))
	return nil
}

// Delete removes block id and every block nested beneath it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	doomed, err := s.subtree(ctx, id)
	if err != nil {
		return err
	}
	// deepest first so a failure never leaves a child without its parent
	for i := len(doomed) - 1; i >= 0; i-- {
		if err := s.store.Delete(ctx, Collection, doomed[i]); err != nil {
			return cmserr.Internal("delete block", err)
		}
	}
	metrics.Mutation("block", "delete")
	zap.L().Info("block deleted", zap.String("id", id), zap.Int("removed", len(doomed)))
	return nil
}

// subtree returns root and its descendants in breadth-first order.  Cycles
// in stored data are tolerated.
func (s *Service) subtree(ctx context.Context, root string) ([]string, error) {
	seen := map[string]bool{root: true}
	out := []string{root}
	for i := 0; i < len(out); i++ {
		children, err := s.store.List(ctx, Collection, docstore.Query{
			Filters: []docstore.Filter{docstore.Eq("parent_block_id", out[i])},
		})
		if err != nil {
			return nil, cmserr.Internal("list child blocks", err)
		}
		for _, c := range children {
			cid := c.ID()
			if cid == "" || seen[cid] {
				continue
			}
			seen[cid] = true
			out = append(out, cid)
		}
	}
	return out, nil
}

// DeletePageBlocks removes every block of pageID and reports how many.
func (s *Service) DeletePageBlocks(ctx context.Context, pageID string) (int, error) {
	n := 0
	err := s.locks.Do(ctx, pageKey(pageID), func() error {
		docs, err := s.store.List(ctx, Collection, docstore.Query{
			Filters: []docstore.Filter{docstore.Eq("page_id", pageID)},
		})
		if err != nil {
			return cmserr.Internal("list page blocks", err)
		}
		for _, d := range docs {
			if err := s.store.Delete(ctx, Collection, d.ID()); err != nil {
				return cmserr.Internal("delete page blocks", err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return n, err
	}
	if n > 0 {
		metrics.Mutation("block", "delete")
	}
	zap.L().Info("page blocks deleted", zap.String("page_id", pageID), zap.Int("removed", n))
	return n, nil
}

// Reorder writes every display_order in one batch.  Positions are taken
// as given.
func (s *Service) Reorder(ctx context.Context, items []OrderUpdate) error {
	updates := make([]docstore.Update, 0, len(items))
	for i, it := range items {
		if it.ID == "" {
			return cmserr.Validation("Block %d is missing an id", i)
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
			return cmserr.NotFound("Block")
		}
		return cmserr.Internal("reorder blocks", err)
	}
	metrics.Mutation("block", "reorder")
	return nil
}

// ToggleVisibility flips is_visible and returns the new value.
func (s *Service) ToggleVisibility(ctx context.Context, id string) (bool, error) {
	var visible bool
	err := s.locks.Do(ctx, "block:"+id, func() error {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		visible = !cur.IsVisible
		if err := s.store.Update(ctx, Collection, id, docstore.Document{"is_visible": visible}); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return cmserr.NotFound("Block")
			}
			return cmserr.Internal("toggle block", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	metrics.Mutation("block", "toggle")
	return visible, nil
}

// Duplicate copies block id onto newPageID (or its own page when empty).
// The copy is appended; it keeps its parent only when it stays on the
// same page.
func (s *Service) Duplicate(ctx context.Context, id, newPageID string) (string, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	target := src.PageID
	if newPageID != "" {
		target = newPageID
	}
	parent := src.ParentBlockID
	if target != src.PageID {
		parent = nil
	}

	newID, err := s.insert(ctx, draft{
		pageID:  target,
		typ:     src.BlockType,
		content: src.Content,
		layout:  src.Layout,
		parent:  parent,
		visible: src.IsVisible,
	})
	if err != nil {
		return "", err
	}
	zap.L().Info("block duplicated", zap.String("from", id), zap.String("to", newID), zap.String("page_id", target))
	return newID, nil
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

// checkParent requires parent to exist on pageID and not be self or one of
// self's descendants.
func (s *Service) checkParent(ctx context.Context, self, pageID, parent string) error {
	if parent == "" {
		return cmserr.Validation("Invalid parent_block_id")
	}
	if parent == self {
		return cmserr.Validation("A block cannot be its own parent")
	}
	p, err := s.Get(ctx, parent)
	if cmserr.Is(err, cmserr.KindNotFound) {
		return cmserr.Validation("Parent block not found")
	}
	if err != nil {
		return err
	}
	if p.PageID != pageID {
		return cmserr.Validation("Parent block must be on the same page")
	}
	if self == "" {
		return nil
	}
	below, err := s.subtree(ctx, self)
	if err != nil {
		return err
	}
	for _, id := range below {
		if id == parent {
			return cmserr.Validation("A block cannot be nested inside its own descendant")
		}
	}
	return nil
}

func decode(d docstore.Document) (*Block, error) {
	var b Block
	if err := d.Decode(&b); err != nil {
		return nil, cmserr.Internal("decode block", err)
	}
	return &b, nil
}
