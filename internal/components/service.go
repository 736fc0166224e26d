// internal/components/service.go
//
// Components Service.
//
/*
Context
--------
Three collections hang off a component:

	reusable_components   the component itself (usage_count lives here)
	block_configurations  the blocks it is built from
	component_instances   its placements on pages

usage_count tracks live instances.  Every write that can change it, and
the component cascade delete, runs under the component's lock
("component:<id>") so the count never drifts under concurrent placement.
*/
package components

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/k9cms/internal/blocks"
	"github.com/yanizio/k9cms/internal/cmserr"
	"github.com/yanizio/k9cms/internal/docstore"
	"github.com/yanizio/k9cms/internal/keylock"
	"github.com/yanizio/k9cms/internal/metrics"
	"github.com/yanizio/k9cms/internal/validation"
)

// Service manages components, block configurations, and instances.
type Service struct {
	store docstore.Store
	locks *keylock.Locker
}

// NewService returns a Service over store.
func NewService(store docstore.Store, locks *keylock.Locker) *Service {
	return &Service{store: store, locks: locks}
}

func lockKey(componentID string) string { return "component:" + componentID }

/*──────────────────────────── components ───────────────────────────────────*/

// List returns components by name, narrowed by opts.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Component, error) {
	q := docstore.Query{OrderBy: "name", Direction: docstore.Asc}
	if opts.Category != "" {
		q.Filters = append(q.Filters, docstore.Eq("category", string(opts.Category)))
	}
	if opts.ActiveOnly {
		q.Filters = append(q.Filters, docstore.Eq("is_active", true))
	}
	docs, err := s.store.List(ctx, Collection, q)
	if err != nil {
		return nil, cmserr.Internal("list components", err)
	}

	needle := strings.ToLower(strings.TrimSpace(opts.Search))
	out := make([]Component, 0, len(docs))
	for _, d := range docs {
		var c Component
		if err := d.Decode(&c); err != nil {
			return nil, cmserr.Internal("decode component", err)
		}
		if needle != "" && !c.matches(needle) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (c *Component) matches(needle string) bool {
	if strings.Contains(strings.ToLower(c.Name), needle) {
		return true
	}
	return c.Description != nil && strings.Contains(strings.ToLower(*c.Description), needle)
}

// Get returns component id.
func (s *Service) Get(ctx context.Context, id string) (*Component, error) {
	d, err := s.store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, cmserr.NotFound("Component")
	}
	if err != nil {
		return nil, cmserr.Internal("get component", err)
	}
	var c Component
	if err := d.Decode(&c); err != nil {
		return nil, cmserr.Internal("decode component", err)
	}
	return &c, nil
}

// GetWithBlocks returns component id with its block configurations.
func (s *Service) GetWithBlocks(ctx context.Context, id string) (*WithBlocks, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cfgs, err := s.BlockConfigurations(ctx, id)
	if err != nil {
		return nil, err
	}
	return &WithBlocks{Component: *c, Blocks: cfgs}, nil
}

// Create validates in and stores a new component.
func (s *Service) Create(ctx context.Context, in NewComponent) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	in.normalize()
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	id, err := s.store.Create(ctx, Collection, docstore.Document{
		"name":          in.Name,
		"description":   in.Description,
		"category":      string(in.Category),
		"preview_image": in.PreviewImage,
		"is_active":     active,
		"usage_count":   0,
	})
	if err != nil {
		return "", cmserr.Internal("create component", err)
	}
	metrics.Mutation("component", "create")
	zap.L().Info("component created", zap.String("id", id), zap.String("name", in.Name))
	return id, nil
}

// Update applies p to component id.
func (s *Service) Update(ctx context.Context, id string, p Patch) error {
	if err := validation.Struct(&p); err != nil {
		return err
	}
	p.normalize()
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return cmserr.Validation("Missing required fields: name")
	}
	doc, err := docstore.Encode(p)
	if err != nil {
		return cmserr.Internal("encode component patch", err)
	}
	if err := s.store.Update(ctx, Collection, id, doc); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return cmserr.NotFound("Component")
		}
		return cmserr.Internal("update component", err)
	}
	metrics.Mutation("component", "update")
	zap.L().Info("component updated", zap.String("id", id))
	return nil
}

// Delete removes component id with its configurations and instances.
func (s *Service) Delete(ctx context.Context, id string) error {
	var cfgs, insts int
	err := s.locks.Do(ctx, lockKey(id), func() error {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		var err error
		if cfgs, err = s.deleteWhere(ctx, ConfigCollection, "component_id", id); err != nil {
			return err
		}
		if insts, err = s.deleteWhere(ctx, InstanceCollection, "component_id", id); err != nil {
			return err
		}
		if err := s.store.Delete(ctx, Collection, id); err != nil {
			return cmserr.Internal("delete component", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.Mutation("component", "delete")
	zap.L().Info("component deleted",
		zap.String("id", id), zap.Int("configurations", cfgs), zap.Int("instances", insts))
	return nil
}

// IncrementUsageCount adds one to the component's usage_count.
func (s *Service) IncrementUsageCount(ctx context.Context, id string) error {
	return s.locks.Do(ctx, lockKey(id), func() error {
		return s.bumpUsage(ctx, id, 1)
	})
}

// bumpUsage must run under the component lock.  The count never goes
// below zero.
func (s *Service) bumpUsage(ctx context.Context, id string, delta int) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	n := c.UsageCount + delta
	if n < 0 {
		n = 0
	}
	if err := s.store.Update(ctx, Collection, id, docstore.Document{"usage_count": n}); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return cmserr.NotFound("Component")
		}
		return cmserr.Internal("update usage count", err)
	}
	return nil
}

/*──────────────────────────── block configurations ─────────────────────────*/

// BlockConfigurations returns the component's blocks by display_order.
func (s *Service) BlockConfigurations(ctx context.Context, componentID string) ([]BlockConfiguration, error) {
	docs, err := s.store.List(ctx, ConfigCollection, docstore.Query{
		Filters:   []docstore.Filter{docstore.Eq("component_id", componentID)},
		OrderBy:   "display_order",
		Direction: docstore.Asc,
	})
	if err != nil {
		return nil, cmserr.Internal("list block configurations", err)
	}
	out := make([]BlockConfiguration, 0, len(docs))
	for _, d := range docs {
		var c BlockConfiguration
		if err := d.Decode(&c); err != nil {
			return nil, cmserr.Internal("decode block configuration", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// GetBlockConfiguration returns configuration id.
func (s *Service) GetBlockConfiguration(ctx context.Context, id string) (*BlockConfiguration, error) {
	d, err := s.store.Get(ctx, ConfigCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, cmserr.NotFound("Block configuration")
	}
	if err != nil {
		return nil, cmserr.Internal("get block configuration", err)
	}
	var c BlockConfiguration
	if err := d.Decode(&c); err != nil {
		return nil, cmserr.Internal("decode block configuration", err)
	}
	return &c, nil
}

// CreateBlockConfiguration appends a block to a component.  Content and
// layout default to the block type's defaults.
func (s *Service) CreateBlockConfiguration(ctx context.Context, in NewBlockConfiguration) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	if !in.BlockType.Valid() {
		return "", cmserr.Validation("Invalid block_type: %s", in.BlockType)
	}
	content, err := blocks.DecodeContent(in.BlockType, in.Content)
	if err != nil {
		return "", cmserr.Validation("Invalid content for %s block", in.BlockType)
	}
	layout := blocks.DefaultLayout()
	if in.Layout != nil {
		layout = *in.Layout
	}
	contentDoc, err := docstore.Encode(content)
	if err != nil {
		return "", cmserr.Internal("encode block content", err)
	}
	layoutDoc, err := docstore.Encode(layout)
	if err != nil {
		return "", cmserr.Internal("encode block layout", err)
	}

	var id string
	err = s.locks.Do(ctx, lockKey(in.ComponentID), func() error {
		if _, err := s.Get(ctx, in.ComponentID); err != nil {
			return err
		}
		order := 0
		if in.DisplayOrder != nil {
			order = *in.DisplayOrder
		} else {
			existing, err := s.store.List(ctx, ConfigCollection, docstore.Query{
				Filters: []docstore.Filter{docstore.Eq("component_id", in.ComponentID)},
			})
			if err != nil {
				return cmserr.Internal("count block configurations", err)
			}
			order = len(existing)
		}
		id, err = s.store.Create(ctx, ConfigCollection, docstore.Document{
			"component_id":  in.ComponentID,
			"block_type":    string(in.BlockType),
			"display_order": order,
			"content":       contentDoc,
			"layout":        layoutDoc,
		})
		if err != nil {
			return cmserr.Internal("create block configuration", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	metrics.Mutation("block_configuration", "create")
	zap.L().Info("block configuration created", zap.String("id", id), zap.String("component_id", in.ComponentID))
	return id, nil
}

// UpdateBlockConfiguration applies p to configuration id.
func (s *Service) UpdateBlockConfiguration(ctx context.Context, id string, p BlockConfigurationPatch) error {
	cur, err := s.GetBlockConfiguration(ctx, id)
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

	var content blocks.Content
	switch {
	case len(p.Content) > 0:
		content, err = blocks.DecodeContent(typ, p.Content)
		if err != nil {
			return cmserr.Validation("Invalid content for %s block", typ)
		}
	case typ != cur.BlockType:
		content = blocks.DefaultContent(typ)
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
	if p.DisplayOrder != nil {
		doc["display_order"] = *p.DisplayOrder
	}

	if err := s.store.Update(ctx, ConfigCollection, id, doc); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return cmserr.NotFound("Block configuration")
		}
		return cmserr.Internal("update block configuration", err)
	}
	metrics.Mutation("block_configuration", "update")
	return nil
}

// DeleteBlockConfiguration removes configuration id.
func (s *Service) DeleteBlockConfiguration(ctx context.Context, id string) error {
	if _, err := s.GetBlockConfiguration(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, ConfigCollection, id); err != nil {
		return cmserr.Internal("delete block configuration", err)
	}
	metrics.Mutation("block_configuration", "delete")
	return nil
}

/*──────────────────────────── instances ────────────────────────────────────*/

// Instances returns placements matching f, oldest first.
func (s *Service) Instances(ctx context.Context, f InstanceFilter) ([]Instance, error) {
	q := docstore.Query{OrderBy: docstore.FieldCreatedAt, Direction: docstore.Asc}
	if f.ComponentID != "" {
		q.Filters = append(q.Filters, docstore.Eq("component_id", f.ComponentID))
	}
	if f.PageID != "" {
		q.Filters = append(q.Filters, docstore.Eq("page_id", f.PageID))
	}
	docs, err := s.store.List(ctx, InstanceCollection, q)
	if err != nil {
		return nil, cmserr.Internal("list component instances", err)
	}
	out := make([]Instance, 0, len(docs))
	for _, d := range docs {
		inst, err := decodeInstance(d)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, nil
}

// CreateInstance places a component and bumps its usage_count.
func (s *Service) CreateInstance(ctx context.Context, in NewInstance) (string, error) {
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	overrides := in.Overrides
	if overrides == nil {
		overrides = map[string]any{}
	}

	var id string
	err := s.locks.Do(ctx, lockKey(in.ComponentID), func() error {
		if _, err := s.Get(ctx, in.ComponentID); err != nil {
			return err
		}
		var err error
		id, err = s.store.Create(ctx, InstanceCollection, docstore.Document{
			"component_id": in.ComponentID,
			"page_id":      in.PageID,
			"block_id":     in.BlockID,
			"overrides":    overrides,
		})
		if err != nil {
			return cmserr.Internal("create component instance", err)
		}
		if err := s.bumpUsage(ctx, in.ComponentID, 1); err != nil {
			// keep usage_count equal to the live instance count
			if rerr := s.store.Delete(ctx, InstanceCollection, id); rerr != nil {
				zap.L().Error("component instance rollback failed; usage_count is short by one",
					zap.String("id", id), zap.String("component_id", in.ComponentID),
					zap.NamedError("cause", err), zap.Error(rerr))
				return cmserr.Internal("roll back component instance", errors.Join(err, rerr))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	metrics.Mutation("component_instance", "create")
	zap.L().Info("component instance created",
		zap.String("id", id), zap.String("component_id", in.ComponentID), zap.String("page_id", in.PageID))
	return id, nil
}

// DeleteInstance removes instance id and decrements its component's
// usage_count.
func (s *Service) DeleteInstance(ctx context.Context, id string) error {
	d, err := s.store.Get(ctx, InstanceCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return cmserr.NotFound("Component instance")
	}
	if err != nil {
		return cmserr.Internal("get component instance", err)
	}
	inst, err := decodeInstance(d)
	if err != nil {
		return err
	}

	err = s.locks.Do(ctx, lockKey(inst.ComponentID), func() error {
		// a concurrent delete may have won the lock first
		if _, err := s.store.Get(ctx, InstanceCollection, id); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return cmserr.NotFound("Component instance")
			}
			return cmserr.Internal("get component instance", err)
		}
		if err := s.store.Delete(ctx, InstanceCollection, id); err != nil {
			return cmserr.Internal("delete component instance", err)
		}
		err := s.bumpUsage(ctx, inst.ComponentID, -1)
		if cmserr.Is(err, cmserr.KindNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	metrics.Mutation("component_instance", "delete")
	return nil
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

// deleteWhere removes every document of collection with field == value.
func (s *Service) deleteWhere(ctx context.Context, collection, field, value string) (int, error) {
	docs, err := s.store.List(ctx, collection, docstore.Query{
		Filters: []docstore.Filter{docstore.Eq(field, value)},
	})
	if err != nil {
		return 0, cmserr.Internal("list "+collection, err)
	}
	for _, d := range docs {
		if err := s.store.Delete(ctx, collection, d.ID()); err != nil {
			return 0, cmserr.Internal("delete "+collection, err)
		}
	}
	return len(docs), nil
}

func decodeInstance(d docstore.Document) (*Instance, error) {
	var inst Instance
	if err := d.Decode(&inst); err != nil {
		return nil, cmserr.Internal("decode component instance", err)
	}
	if inst.Overrides == nil {
		inst.Overrides = map[string]any{}
	}
	return &inst, nil
}
