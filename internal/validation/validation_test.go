package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/k9cms/internal/cmserr"
)

type input struct {
	Label  string  `json:"label_en" validate:"required"`
	Href   string  `json:"href"     validate:"required"`
	Level  int     `json:"level"    validate:"required,oneof=1 2"`
	Status *string `json:"status"   validate:"omitempty,oneof=draft published"`
}

func TestStruct_MissingRequired(t *testing.T) {
	err := Struct(&input{Label: "Home"})
	require.Error(t, err)
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))
	assert.Equal(t, "Missing required fields: label_en, href, level", cmserr.Message(err))
}

func TestStruct_OneOf(t *testing.T) {
	err := Struct(&input{Label: "Home", Href: "/", Level: 3})
	require.Error(t, err)
	assert.Equal(t, "Invalid level: must be one of 1 2", cmserr.Message(err))

	bad := "gone"
	err = Struct(&input{Label: "Home", Href: "/", Level: 1, Status: &bad})
	require.Error(t, err)
	assert.Equal(t, "Invalid status: must be one of draft published", cmserr.Message(err))
}

func TestStruct_OK(t *testing.T) {
	ok := "draft"
	assert.NoError(t, Struct(&input{Label: "Home", Href: "/", Level: 2, Status: &ok}))
}
