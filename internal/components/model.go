// internal/components/model.go
//
// Reusable components, their block configurations, and placements.
//
// A component is a named, reusable arrangement of blocks.  Its block
// configurations describe the blocks it is made of; a component instance
// records that a component is placed on a page through a
// component_instance block.

package components

import (
	"encoding/json"
	"time"

	"github.com/yanizio/k9cms/internal/blocks"
	"github.com/yanizio/k9cms/internal/nullable"
)

// Collection names.
const (
	Collection         = "reusable_components"
	ConfigCollection   = "block_configurations"
	InstanceCollection = "component_instances"
)

// Category groups components in the admin library.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryHeader     Category = "header"
	CategoryFooter     Category = "footer"
	CategorySidebar    Category = "sidebar"
	CategoryHero       Category = "hero"
	CategoryCTA        Category = "cta"
	CategoryCard       Category = "card"
	CategoryForm       Category = "form"
	CategoryNavigation Category = "navigation"
)

// Component is one stored reusable component.
type Component struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	Category     Category  `json:"category"`
	PreviewImage *string   `json:"preview_image"`
	IsActive     bool      `json:"is_active"`
	UsageCount   int       `json:"usage_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WithBlocks is a component together with its block configurations.
type WithBlocks struct {
	Component
	Blocks []BlockConfiguration `json:"blocks"`
}

// NewComponent is the create payload.
type NewComponent struct {
	Name         string   `json:"name"     validate:"required"`
	Category     Category `json:"category" validate:"required,oneof=general header footer sidebar hero cta card form navigation"`
	Description  *string  `json:"description"`
	PreviewImage *string  `json:"preview_image"`
	IsActive     *bool    `json:"is_active"`
}

// Patch is the component update payload.  usage_count is maintained by
// the service and has no field here.
type Patch struct {
	Name         *string                `json:"name,omitempty"`
	Category     *Category              `json:"category,omitempty" validate:"omitempty,oneof=general header footer sidebar hero cta card form navigation"`
	IsActive     *bool                  `json:"is_active,omitempty"`
	Description  nullable.Value[string] `json:"description,omitzero"`
	PreviewImage nullable.Value[string] `json:"preview_image,omitzero"`
}

func (in *NewComponent) normalize() {
	in.Description = nullable.Blank(in.Description)
	in.PreviewImage = nullable.Blank(in.PreviewImage)
}

func (p *Patch) normalize() {
	p.Description = nullable.BlankAsNull(p.Description)
	p.PreviewImage = nullable.BlankAsNull(p.PreviewImage)
}

// ListOptions narrows List.
type ListOptions struct {
	Category   Category
	ActiveOnly bool
	Search     string
}

// BlockConfiguration is one block template inside a component.
type BlockConfiguration struct {
	ID           string         `json:"id"`
	ComponentID  string         `json:"component_id"`
	BlockType    blocks.Type    `json:"block_type"`
	DisplayOrder int            `json:"display_order"`
	Content      blocks.Content `json:"content"`
	Layout       blocks.Layout  `json:"layout"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// UnmarshalJSON decodes content against block_type.
func (c *BlockConfiguration) UnmarshalJSON(data []byte) error {
	type alias BlockConfiguration
	aux := struct {
		*alias
		Content json.RawMessage `json:"content"`
	}{alias: (*alias)(c)}
	c.Layout = blocks.DefaultLayout()

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	content, err := blocks.DecodeContent(c.BlockType, aux.Content)
	if err != nil {
		return err
	}
	c.Content = content
	return nil
}

// NewBlockConfiguration is the create payload.  ComponentID is filled from
// the route when absent from the body.
type NewBlockConfiguration struct {
	ComponentID  string          `json:"component_id" validate:"required"`
	BlockType    blocks.Type     `json:"block_type"   validate:"required"`
	DisplayOrder *int            `json:"display_order"`
	Content      json.RawMessage `json:"content"`
	Layout       *blocks.Layout  `json:"layout"`
}

// BlockConfigurationPatch is the block configuration update payload.
type BlockConfigurationPatch struct {
	BlockType    *blocks.Type    `json:"block_type,omitempty"`
	DisplayOrder *int            `json:"display_order,omitempty"`
	Content      json.RawMessage `json:"content,omitempty"`
	Layout       *blocks.Layout  `json:"layout,omitempty"`
}

// Instance records a component placed on a page.
type Instance struct {
	ID          string         `json:"id"`
	ComponentID string         `json:"component_id"`
	PageID      string         `json:"page_id"`
	BlockID     string         `json:"block_id"`
	Overrides   map[string]any `json:"overrides"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewInstance is the instance create payload.
type NewInstance struct {
	ComponentID string         `json:"component_id" validate:"required"`
	PageID      string         `json:"page_id"      validate:"required"`
	BlockID     string         `json:"block_id"     validate:"required"`
	Overrides   map[string]any `json:"overrides"`
}

// InstanceFilter narrows Instances; empty fields match everything.
type InstanceFilter struct {
	ComponentID string
	PageID      string
}
