// internal/pages/model.go
//
// Page model and payloads.

package pages

import (
	"time"

	"github.com/yanizio/k9cms/internal/nullable"
)

// Collection is the document-store collection name.
const Collection = "pages"

// Status is the publication state of a page.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Template selects the page layout.
type Template string

const (
	TemplateStandard  Template = "standard"
	TemplateLanding   Template = "landing"
	TemplateGallery   Template = "gallery"
	TemplateFullWidth Template = "full_width"
)

// Page is one stored page.  Blocks live in their own collection.
type Page struct {
	ID              string     `json:"id"`
	Slug            string     `json:"slug"`
	Title           string     `json:"title"`
	MetaDescription *string    `json:"meta_description"`
	MetaKeywords    *string    `json:"meta_keywords"`
	OGImage         *string    `json:"og_image"`
	Status          Status     `json:"status"`
	Template        Template   `json:"template"`
	IsReusable      bool       `json:"is_reusable"`
	Category        *string    `json:"category"`
	ViewCount       int        `json:"view_count"`
	PublishedAt     *time.Time `json:"published_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewPage is the create payload.
type NewPage struct {
	Slug            string   `json:"slug"  validate:"required"`
	Title           string   `json:"title" validate:"required"`
	MetaDescription *string  `json:"meta_description"`
	MetaKeywords    *string  `json:"meta_keywords"`
	OGImage         *string  `json:"og_image"`
	Status          Status   `json:"status"   validate:"omitempty,oneof=draft published archived"`
	Template        Template `json:"template" validate:"omitempty,oneof=standard landing gallery full_width"`
	IsReusable      *bool    `json:"is_reusable"`
	Category        *string  `json:"category"`
}

// Patch is the update payload.  view_count, published_at, and timestamps
// are not client-writable, so they have no field here.
type Patch struct {
	Slug            *string                `json:"slug,omitempty"`
	Title           *string                `json:"title,omitempty"`
	Status          *Status                `json:"status,omitempty"   validate:"omitempty,oneof=draft published archived"`
	Template        *Template              `json:"template,omitempty" validate:"omitempty,oneof=standard landing gallery full_width"`
	IsReusable      *bool                  `json:"is_reusable,omitempty"`
	MetaDescription nullable.Value[string] `json:"meta_description,omitzero"`
	MetaKeywords    nullable.Value[string] `json:"meta_keywords,omitzero"`
	OGImage         nullable.Value[string] `json:"og_image,omitzero"`
	Category        nullable.Value[string] `json:"category,omitzero"`
}

// normalize stores "" in optional fields as null.
func (in *NewPage) normalize() {
	in.MetaDescription = nullable.Blank(in.MetaDescription)
	in.MetaKeywords = nullable.Blank(in.MetaKeywords)
	in.OGImage = nullable.Blank(in.OGImage)
	in.Category = nullable.Blank(in.Category)
}

func (p *Patch) normalize() {
	p.MetaDescription = nullable.BlankAsNull(p.MetaDescription)
	p.MetaKeywords = nullable.BlankAsNull(p.MetaKeywords)
	p.OGImage = nullable.BlankAsNull(p.OGImage)
	p.Category = nullable.BlankAsNull(p.Category)
}

// ListOptions narrows List.  Status wins over Published when both are set.
type ListOptions struct {
	Published *bool
	Reusable  *bool
	Template  Template
	Status    Status
	Search    string
}
