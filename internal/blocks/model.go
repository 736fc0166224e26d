// internal/blocks/model.go
//
// Content block model and payloads.

package blocks

import (
	"encoding/json"
	"time"

	"github.com/yanizio/k9cms/internal/nullable"
)

// Collection is the document-store collection name.
const Collection = "content_blocks"

// Block is one stored content block.  Content always matches BlockType.
type Block struct {
	ID            string    `json:"id"`
	PageID        string    `json:"page_id"`
	BlockType     Type      `json:"block_type"`
	DisplayOrder  int       `json:"display_order"`
	Content       Content   `json:"content"`
	Layout        Layout    `json:"layout"`
	ParentBlockID *string   `json:"parent_block_id"`
	IsVisible     bool      `json:"is_visible"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UnmarshalJSON decodes content against block_type.  A stored block
// without a layout gets DefaultLayout.
func (b *Block) UnmarshalJSON(data []byte) error {
	type alias Block
	aux := struct {
		*alias
		Content json.RawMessage `json:"content"`
	}{alias: (*alias)(b)}
	b.Layout = DefaultLayout()

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c, err := DecodeContent(b.BlockType, aux.Content)
	if err != nil {
		return err
	}
	b.Content = c
	return nil
}

// NewBlock is the create payload.  Content is decoded against BlockType.
type NewBlock struct {
	PageID        string          `json:"page_id"    validate:"required"`
	BlockType     Type            `json:"block_type" validate:"required"`
	DisplayOrder  *int            `json:"display_order"`
	Content       json.RawMessage `json:"content"`
	Layout        *Layout         `json:"layout"`
	ParentBlockID *string         `json:"parent_block_id"`
	IsVisible     *bool           `json:"is_visible"`
}

// Patch is the update payload.  Layout replaces the stored layout whole.
type Patch struct {
	PageID        *string                `json:"page_id,omitempty"`
	BlockType     *Type                  `json:"block_type,omitempty"`
	DisplayOrder  *int                   `json:"display_order,omitempty"`
	Content       json.RawMessage        `json:"content,omitempty"`
	Layout        *Layout                `json:"layout,omitempty"`
	ParentBlockID nullable.Value[string] `json:"parent_block_id,omitzero"`
	IsVisible     *bool                  `json:"is_visible,omitempty"`
}

// OrderUpdate is one entry of a reorder batch.
type OrderUpdate struct {
	ID           string `json:"id"`
	DisplayOrder int    `json:"display_order"`
}
