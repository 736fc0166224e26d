package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestBuildTree(t *testing.T) {
	items := []Item{
		{ID: "B", Level: 1, DisplayOrder: 1},
		{ID: "A", Level: 1, DisplayOrder: 0},
		{ID: "c1", Level: 2, ParentID: strp("A"), DisplayOrder: 1},
		{ID: "c0", Level: 2, ParentID: strp("A"), DisplayOrder: 0},
		{ID: "orphan", Level: 2, ParentID: strp("gone"), DisplayOrder: 0},
	}

	tree := BuildTree(items)
	require.Len(t, tree, 2)

	assert.Equal(t, "A", tree[0].ID)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "c0", tree[0].Children[0].ID)
	assert.Equal(t, "c1", tree[0].Children[1].ID)

	assert.Equal(t, "B", tree[1].ID)
	assert.NotNil(t, tree[1].Children)
	assert.Empty(t, tree[1].Children)
}

func TestBuildTree_StableOnTies(t *testing.T) {
	tree := BuildTree([]Item{
		{ID: "first", Level: 1},
		{ID: "second", Level: 1},
	})
	require.Len(t, tree, 2)
	assert.Equal(t, "first", tree[0].ID)
	assert.Equal(t, "second", tree[1].ID)
}

func TestValidHref(t *testing.T) {
	for _, ok := range []string{"/", "/about", "https://k9.school", "http://x", "#contact"} {
		assert.True(t, ValidHref(ok), ok)
	}
	for _, bad := range []string{"about", "ftp://x", "javascript:alert(1)", ""} {
		assert.False(t, ValidHref(bad), bad)
	}
}
