// internal/blocks/content.go
//
// Typed block content.
//
/*
Context
--------
`content` is a tagged union keyed by `block_type`.  Each block type has
one Go struct implementing Content; DecodeContent picks the struct from
the type and unmarshals into it, so a hero block can never carry a form's
fields and callers get compile-time field names.

Default content per type is fixed and round-trips exactly:

	text               {"text":"","alignment":"left"}
	image              {"url":"","alt":""}
	video              {"url":"","controls":true,"autoplay":false}
	hero               {"title":"","alignment":"center"}
	card               {"title":"","description":""}
	cards_grid         {"cards":[],"columns":3}
	cta                {"heading":"","primary_button_text":"Learn More","primary_button_link":"#"}
	component_instance {"component_id":"","overrides":{}}
	page_embed         {"page_id":""}
	section, divider   {}
	columns            {"column_count":2}
	spacer             {"height":"2rem"}
	accordion          {"items":[]}
	tabs               {"tabs":[]}
	form               {"fields":[]}
*/
package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Type names a block kind.
type Type string

const (
	TypeText              Type = "text"
	TypeImage             Type = "image"
	TypeVideo             Type = "video"
	TypeHero              Type = "hero"
	TypeCard              Type = "card"
	TypeCardsGrid         Type = "cards_grid"
	TypeCTA               Type = "cta"
	TypeSection           Type = "section"
	TypeColumns           Type = "columns"
	TypeDivider           Type = "divider"
	TypeSpacer            Type = "spacer"
	TypeAccordion         Type = "accordion"
	TypeTabs              Type = "tabs"
	TypeForm              Type = "form"
	TypeComponentInstance Type = "component_instance"
	TypePageEmbed         Type = "page_embed"
)

// Types lists every known block type.
var Types = []Type{
	TypeText, TypeImage, TypeVideo, TypeHero, TypeCard, TypeCardsGrid, TypeCTA,
	TypeSection, TypeColumns, TypeDivider, TypeSpacer, TypeAccordion, TypeTabs,
	TypeForm, TypeComponentInstance, TypePageEmbed,
}

// Valid reports whether t is a known block type.
func (t Type) Valid() bool {
	_, ok := factories[t]
	return ok
}

// Content is implemented by every per-type content struct.
type Content interface {
	BlockType() Type
}

type TextContent struct {
	Text      string `json:"text"`
	Heading   string `json:"heading,omitempty"`
	Alignment string `json:"alignment,omitempty"`
}

type ImageContent struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Caption string `json:"caption,omitempty"`
	Link    string `json:"link,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

type VideoContent struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Caption   string `json:"caption,omitempty"`
	Controls  bool   `json:"controls"`
	Autoplay  bool   `json:"autoplay"`
}

type HeroContent struct {
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle,omitempty"`
	BackgroundImage string `json:"background_image,omitempty"`
	BackgroundVideo string `json:"background_video,omitempty"`
	CTAText         string `json:"cta_text,omitempty"`
	CTALink         string `json:"cta_link,omitempty"`
	Alignment       string `json:"alignment,omitempty"`
}

type CardContent struct {
	Image       string `json:"image,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
	LinkText    string `json:"link_text,omitempty"`
}

type CardsGridContent struct {
	Cards   []CardContent `json:"cards"`
	Columns int           `json:"columns"`
	GridGap string        `json:"grid_gap,omitempty"`
}

type CTAContent struct {
	Heading             string `json:"heading"`
	Description         string `json:"description,omitempty"`
	PrimaryButtonText   string `json:"primary_button_text"`
	PrimaryButtonLink   string `json:"primary_button_link"`
	SecondaryButtonText string `json:"secondary_button_text,omitempty"`
	SecondaryButtonLink string `json:"secondary_button_link,omitempty"`
}

// SectionContent groups child blocks (linked by parent_block_id).
type SectionContent struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type ColumnsContent struct {
	ColumnCount int `json:"column_count"`
}

type DividerContent struct {
	Style string `json:"style,omitempty"`
}

type SpacerContent struct {
	Height string `json:"height"`
}

type AccordionItem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type AccordionContent struct {
	Items []AccordionItem `json:"items"`
}

type Tab struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

type TabsContent struct {
	Tabs []Tab `json:"tabs"`
}

type FormField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
}

type FormContent struct {
	Fields      []FormField `json:"fields"`
	SubmitText  string      `json:"submit_text,omitempty"`
	SuccessText string      `json:"success_text,omitempty"`
}

type ComponentInstanceContent struct {
	ComponentID string         `json:"component_id"`
	Overrides   map[string]any `json:"overrides"`
}

type PageEmbedContent struct {
	PageID string `json:"page_id"`
}

func (TextContent) BlockType() Type              { return TypeText }
func (ImageContent) BlockType() Type             { return TypeImage }
func (VideoContent) BlockType() Type             { return TypeVideo }
func (HeroContent) BlockType() Type              { return TypeHero }
func (CardContent) BlockType() Type              { return TypeCard }
func (CardsGridContent) BlockType() Type         { return TypeCardsGrid }
func (CTAContent) BlockType() Type               { return TypeCTA }
func (SectionContent) BlockType() Type           { return TypeSection }
func (ColumnsContent) BlockType() Type           { return TypeColumns }
func (DividerContent) BlockType() Type           { return TypeDivider }
func (SpacerContent) BlockType() Type            { return TypeSpacer }
func (AccordionContent) BlockType() Type         { return TypeAccordion }
func (TabsContent) BlockType() Type              { return TypeTabs }
func (FormContent) BlockType() Type              { return TypeForm }
func (ComponentInstanceContent) BlockType() Type { return TypeComponentInstance }
func (PageEmbedContent) BlockType() Type         { return TypePageEmbed }

// factories builds the default content of each type.  Slices and maps are
// allocated so defaults encode as [] and {} rather than null.
var factories = map[Type]func() Content{
	TypeText:      func() Content { return &TextContent{Alignment: "left"} },
	TypeImage:     func() Content { return &ImageContent{} },
	TypeVideo:     func() Content { return &VideoContent{Controls: true} },
	TypeHero:      func() Content { return &HeroContent{Alignment: "center"} },
	TypeCard:      func() Content { return &CardContent{} },
	TypeCardsGrid: func() Content { return &CardsGridContent{Cards: []CardContent{}, Columns: 3} },
	TypeCTA: func() Content {
		return &CTAContent{PrimaryButtonText: "Learn More", PrimaryButtonLink: "#"}
	},
	TypeSection:   func() Content { return &SectionContent{} },
	TypeColumns:   func() Content { return &ColumnsContent{ColumnCount: 2} },
	TypeDivider:   func() Content { return &DividerContent{} },
	TypeSpacer:    func() Content { return &SpacerContent{Height: "2rem"} },
	TypeAccordion: func() Content { return &AccordionContent{Items: []AccordionItem{}} },
	TypeTabs:      func() Content { return &TabsContent{Tabs: []Tab{}} },
	TypeForm:      func() Content { return &FormContent{Fields: []FormField{}} },
	TypeComponentInstance: func() Content {
		return &ComponentInstanceContent{Overrides: map[string]any{}}
	},
	TypePageEmbed: func() Content { return &PageEmbedContent{} },
}

// DefaultContent returns a fresh default value for t, or nil when t is
// unknown.
func DefaultContent(t Type) Content {
	f, ok := factories[t]
	if !ok {
		return nil
	}
	return f()
}

// DecodeContent parses raw as content of type t.  Empty or null raw yields
// DefaultContent(t).  Keys the caller omits keep their zero value, not the
// default, so a stored {"text":"hi"} stays exactly that.
func DecodeContent(t Type, raw json.RawMessage) (Content, error) {
	f, ok := factories[t]
	if !ok {
		return nil, fmt.Errorf("unknown block type %q", t)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return f(), nil
	}

	c := zeroOf(t)
	if err := json.Unmarshal(trimmed, c); err != nil {
		return nil, fmt.Errorf("invalid %s content: %w", t, err)
	}
	normalize(c)
	return c, nil
}

// zeroOf returns an empty pointer of the right struct for t.
func zeroOf(t Type) Content {
	switch t {
	case TypeText:
		return &TextContent{}
	case TypeImage:
		return &ImageContent{}
	case TypeVideo:
		return &VideoContent{}
	case TypeHero:
		return &HeroContent{}
	case TypeCard:
		return &CardContent{}
	case TypeCardsGrid:
		return &CardsGridContent{}
	case TypeCTA:
		return &CTAContent{}
	case TypeSection:
		return &SectionContent{}
	case TypeColumns:
		return &ColumnsContent{}
	case TypeDivider:
		return &DividerContent{}
	case TypeSpacer:
		return &SpacerContent{}
	case TypeAccordion:
		return &AccordionContent{}
	case TypeTabs:
		return &TabsContent{}
	case TypeForm:
		return &FormContent{}
	case TypeComponentInstance:
		return &ComponentInstanceContent{}
	default:
		return &PageEmbedContent{}
	}
}

// normalize replaces nil collections so they encode as [] and {}.
func normalize(c Content) {
	switch v := c.(type) {
	case *CardsGridContent:
		if v.Cards == nil {
			v.Cards = []CardContent{}
		}
	case *AccordionContent:
		if v.Items == nil {
			v.Items = []AccordionItem{}
		}
	case *TabsContent:
		if v.Tabs == nil {
			v.Tabs = []Tab{}
		}
	case *FormContent:
		if v.Fields == nil {
			v.Fields = []FormField{}
		}
	case *ComponentInstanceContent:
		if v.Overrides == nil {
			v.Overrides = map[string]any{}
		}
	}
}
