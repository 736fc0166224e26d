// internal/navigation/model.go
//
// Navigation item model.
//
// The site menu is a two-level tree.  Level-1 items sit at the top and
// never have a parent; level-2 items always name a level-1 parent.  Labels
// and metadata are bilingual (English required, Arabic optional).

package navigation

import (
	"strings"
	"time"

	"github.com/yanizio/k9cms/internal/nullable"
)

// Collection is the document-store collection name.
const Collection = "navigation"

// Item is one stored navigation entry.
type Item struct {
	ID                string    `json:"id"`
	LabelEN           string    `json:"label_en"`
	LabelAR           *string   `json:"label_ar"`
	Href              string    `json:"href"`
	Level             int       `json:"level"`
	ParentID          *string   `json:"parent_id"`
	DisplayOrder      int       `json:"display_order"`
	IsVisible         bool      `json:"is_visible"`
	IsFeatured        bool      `json:"is_featured"`
	DescriptionEN     *string   `json:"description_en"`
	DescriptionAR     *string   `json:"description_ar"`
	Icon              *string   `json:"icon"`
	PageID            *string   `json:"page_id"`
	MetaTitleEN       *string   `json:"meta_title_en"`
	MetaTitleAR       *string   `json:"meta_title_ar"`
	MetaDescriptionEN *string   `json:"meta_description_en"`
	MetaDescriptionAR *string   `json:"meta_description_ar"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Node is a level-1 item with its level-2 children.
type Node struct {
	Item
	Children []Item `json:"children"`
}

// NewItem is the create payload.
type NewItem struct {
	LabelEN           string  `json:"label_en" validate:"required"`
	Href              string  `json:"href"     validate:"required"`
	Level             int     `json:"level"    validate:"required,oneof=1 2"`
	LabelAR           *string `json:"label_ar"`
	ParentID          *string `json:"parent_id"`
	DisplayOrder      *int    `json:"display_order"`
	IsVisible         *bool   `json:"is_visible"`
	IsFeatured        *bool   `json:"is_featured"`
	DescriptionEN     *string `json:"description_en"`
	DescriptionAR     *string `json:"description_ar"`
	Icon              *string `json:"icon"`
	PageID            *string `json:"page_id"`
	MetaTitleEN       *string `json:"meta_title_en"`
	MetaTitleAR       *string `json:"meta_title_ar"`
	MetaDescriptionEN *string `json:"meta_description_en"`
	MetaDescriptionAR *string `json:"meta_description_ar"`
}

// Patch is the update payload.  Absent fields are left untouched;
// nullable fields may be cleared with an explicit null.
type Patch struct {
	LabelEN           *string                `json:"label_en,omitempty"`
	Href              *string                `json:"href,omitempty"`
	Level             *int                   `json:"level,omitempty" validate:"omitempty,oneof=1 2"`
	DisplayOrder      *int                   `json:"display_order,omitempty"`
	IsVisible         *bool                  `json:"is_visible,omitempty"`
	IsFeatured        *bool                  `json:"is_featured,omitempty"`
	LabelAR           nullable.Value[string] `json:"label_ar,omitzero"`
	ParentID          nullable.Value[string] `json:"parent_id,omitzero"`
	DescriptionEN     nullable.Value[string] `json:"description_en,omitzero"`
	DescriptionAR     nullable.Value[string] `json:"description_ar,omitzero"`
	Icon              nullable.Value[string] `json:"icon,omitzero"`
	PageID            nullable.Value[string] `json:"page_id,omitzero"`
	MetaTitleEN       nullable.Value[string] `json:"meta_title_en,omitzero"`
	MetaTitleAR       nullable.Value[string] `json:"meta_title_ar,omitzero"`
	MetaDescriptionEN nullable.Value[string] `json:"meta_description_en,omitzero"`
	MetaDescriptionAR nullable.Value[string] `json:"meta_description_ar,omitzero"`
}

// normalize stores "" in optional fields as null.
func (in *NewItem) normalize() {
	for _, f := range []**string{
		&in.LabelAR, &in.ParentID, &in.DescriptionEN, &in.DescriptionAR, &in.Icon,
		&in.PageID, &in.MetaTitleEN, &in.MetaTitleAR, &in.MetaDescriptionEN, &in.MetaDescriptionAR,
	} {
		*f = nullable.Blank(*f)
	}
}

// normalize turns "" in nullable fields into an explicit null.
func (p *Patch) normalize() {
	for _, f := range []*nullable.Value[string]{
		&p.LabelAR, &p.ParentID, &p.DescriptionEN, &p.DescriptionAR, &p.Icon,
		&p.PageID, &p.MetaTitleEN, &p.MetaTitleAR, &p.MetaDescriptionEN, &p.MetaDescriptionAR,
	} {
		*f = nullable.BlankAsNull(*f)
	}
}

// OrderUpdate assigns a display position to one item.
type OrderUpdate struct {
	ID           string `json:"id"`
	DisplayOrder int    `json:"display_order"`
}

// ListOptions narrows List and Tree.
type ListOptions struct {
	VisibleOnly  bool
	FeaturedOnly bool
	Level        int     // 0 = any
	ParentID     *string // nil = any
	SortBy       string  // default display_order
}

// sortable lists the fields List may order by.
var sortable = map[string]bool{
	"display_order": true,
	"label_en":      true,
	"created_at":    true,
	"updated_at":    true,
}

// ValidHref accepts site paths, absolute http(s) URLs, and anchors.
func ValidHref(href string) bool {
	for _, p := range []string{"/", "http://", "https://", "#"} {
		if strings.HasPrefix(href, p) {
			return true
		}
	}
	return false
}
