// internal/blocks/layout.go
//
// Presentation settings shared by content blocks and block configurations.

package blocks

// CardStyle styles card-like blocks.
type CardStyle struct {
	BorderRadius string `json:"border_radius"`
	Shadow       string `json:"shadow"`
	HoverEffect  bool   `json:"hover_effect"`
}

// Layout controls how a block is framed on the page.  Every field is
// always encoded, empty strings included.
type Layout struct {
	ContainerWidth   string    `json:"container_width"`
	Padding          string    `json:"padding"`
	Margin           string    `json:"margin"`
	BackgroundColor  string    `json:"background_color"`
	TextColor        string    `json:"text_color"`
	CustomCSSClasses string    `json:"custom_css_classes"`
	CardStyle        CardStyle `json:"card_style"`
}

// DefaultLayout is applied to blocks created without a layout.
func DefaultLayout() Layout {
	return Layout{
		ContainerWidth: "standard",
		Padding:        "md",
		Margin:         "md",
		CardStyle: CardStyle{
			BorderRadius: "md",
			Shadow:       "sm",
		},
	}
}
