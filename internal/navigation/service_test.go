package navigation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/k9cms/internal/cmserr"
	"github.com/yanizio/k9cms/internal/docstore"
	"github.com/yanizio/k9cms/internal/nullable"
)

func newService(t *testing.T) (*Service, docstore.Store) {
	t.Helper()
	store := docstore.NewMemory()
	return NewService(store), store
}

func intp(i int) *int    { return &i }
func boolp(b bool) *bool { return &b }

func mustCreate(t *testing.T, s *Service, in NewItem) string {
	t.Helper()
	id, err := s.Create(context.Background(), in)
	require.NoError(t, err)
	return id
}

func TestCreate_DefaultsAndNulls(t *testing.T) {
	s, store := newService(t)
	id := mustCreate(t, s, NewItem{LabelEN: "About", Href: "/about", Level: 1})

	it, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, it.IsVisible)
	assert.False(t, it.IsFeatured)
	assert.Equal(t, 0, it.DisplayOrder)
	assert.Nil(t, it.ParentID)
	assert.False(t, it.CreatedAt.IsZero())

	raw, err := store.Get(context.Background(), Collection, id)
	require.NoError(t, err)
	v, present := raw["label_ar"]
	assert.True(t, present, "optional fields are stored as explicit nulls")
	assert.Nil(t, v)
}

func TestCreate_Validation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	parent := mustCreate(t, s, NewItem{LabelEN: "Programs", Href: "/programs", Level: 1})
	child := mustCreate(t, s, NewItem{LabelEN: "Obedience", Href: "/programs/obedience", Level: 2, ParentID: &parent})

	cases := []struct {
		name string
		in   NewItem
		msg  string
	}{
		{"missing fields", NewItem{LabelEN: "X"}, "Missing required fields: label_en, href, level"},
		{"level 2 without parent", NewItem{LabelEN: "X", Href: "/x", Level: 2}, "Level 2 items must have a parent_id"},
		{"level 1 with parent", NewItem{LabelEN: "X", Href: "/x", Level: 1, ParentID: &parent}, "Level 1 items cannot have a parent_id"},
		{"unknown parent", NewItem{LabelEN: "X", Href: "/x", Level: 2, ParentID: strp("nope")}, "Parent navigation item not found"},
		{"level 2 parent", NewItem{LabelEN: "X", Href: "/x", Level: 2, ParentID: &child}, "Parent navigation item must be level 1"},
		{"bad href", NewItem{LabelEN: "X", Href: "x", Level: 1}, "Invalid href: must start with /, http://, https://, or #"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := s.Create(ctx, c.in)
			require.Error(t, err)
			assert.True(t, cmserr.Is(err, cmserr.KindValidation))
			assert.Equal(t, c.msg, cmserr.Message(err))
		})
	}
}

func TestCreate_DuplicateHrefConflicts(t *testing.T) {
	s, _ := newService(t)
	mustCreate(t, s, NewItem{LabelEN: "About", Href: "/about", Level: 1})

	_, err := s.Create(context.Background(), NewItem{LabelEN: "About again", Href: "/about", Level: 1})
	require.Error(t, err)
	assert.True(t, cmserr.Is(err, cmserr.KindConflict))
	assert.Equal(t, "Navigation item with this href already exists", cmserr.Message(err))
}

func TestDelete_CascadesDirectChildren(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()
	parent := mustCreate(t, s, NewItem{LabelEN: "Programs", Href: "/programs", Level: 1})
	mustCreate(t, s, NewItem{LabelEN: "A", Href: "/programs/a", Level: 2, ParentID: &parent})
	mustCreate(t, s, NewItem{LabelEN: "B", Href: "/programs/b", Level: 2, ParentID: &parent})
	keep := mustCreate(t, s, NewItem{LabelEN: "Contact", Href: "/contact", Level: 1})

	require.NoError(t, s.Delete(ctx, parent))

	left, err := store.List(ctx, Collection, docstore.Query{})
	require.NoError(t, err)
	require.Len(t, left, 1, "parent plus two children are removed")
	assert.Equal(t, keep, left[0].ID())

	require.NoError(t, s.Delete(ctx, keep))
	left, _ = store.List(ctx, Collection, docstore.Query{})
	assert.Empty(t, left)

	err = s.Delete(ctx, keep)
	assert.True(t, cmserr.Is(err, cmserr.KindNotFound))
}

func TestToggleVisibility(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, s, NewItem{LabelEN: "About", Href: "/about", Level: 1})

	require.NoError(t, s.ToggleVisibility(ctx, id))
	it, _ := s.Get(ctx, id)
	assert.False(t, it.IsVisible)

	require.NoError(t, s.ToggleVisibility(ctx, id))
	it, _ = s.Get(ctx, id)
	assert.True(t, it.IsVisible)

	err := s.ToggleVisibility(ctx, "missing")
	assert.Equal(t, "Navigation item not found", cmserr.Message(err))
}

func TestReorderAndTree(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	a := mustCreate(t, s, NewItem{LabelEN: "A", Href: "/a", Level: 1, DisplayOrder: intp(0)})
	b := mustCreate(t, s, NewItem{LabelEN: "B", Href: "/b", Level: 1, DisplayOrder: intp(1)})
	mustCreate(t, s, NewItem{LabelEN: "Hidden", Href: "/h", Level: 1, DisplayOrder: intp(2), IsVisible: boolp(false)})
	c := mustCreate(t, s, NewItem{LabelEN: "C", Href: "/a/c", Level: 2, ParentID: &a})

	require.NoError(t, s.Reorder(ctx, []OrderUpdate{{ID: a, DisplayOrder: 1}, {ID: b, DisplayOrder: 0}}))

	tree, err := s.Tree(ctx, ListOptions{VisibleOnly: true})
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, b, tree[0].ID)
	assert.Equal(t, a, tree[1].ID)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, c, tree[1].Children[0].ID)

	err = s.Reorder(ctx, []OrderUpdate{{ID: a, DisplayOrder: 3}, {ID: "ghost", DisplayOrder: 4}})
	assert.True(t, cmserr.Is(err, cmserr.KindNotFound))
	it, _ := s.Get(ctx, a)
	assert.Equal(t, 1, it.DisplayOrder, "failed reorder leaves positions untouched")

	_, err = s.List(ctx, ListOptions{SortBy: "href; drop"})
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))
}

func TestList_Filters(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	a := mustCreate(t, s, NewItem{LabelEN: "A", Href: "/a", Level: 1, IsFeatured: boolp(true)})
	mustCreate(t, s, NewItem{LabelEN: "B", Href: "/b", Level: 1})
	mustCreate(t, s, NewItem{LabelEN: "C", Href: "/a/c", Level: 2, ParentID: &a})

	lvl2, err := s.List(ctx, ListOptions{Level: 2})
	require.NoError(t, err)
	assert.Len(t, lvl2, 1)

	kids, err := s.List(ctx, ListOptions{ParentID: &a})
	require.NoError(t, err)
	assert.Len(t, kids, 1)

	featured, err := s.List(ctx, ListOptions{FeaturedOnly: true})
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, a, featured[0].ID)
}

func TestUpdate_RechecksInvariants(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	a := mustCreate(t, s, NewItem{LabelEN: "A", Href: "/a", Level: 1})
	b := mustCreate(t, s, NewItem{LabelEN: "B", Href: "/b", Level: 1})
	c := mustCreate(t, s, NewItem{LabelEN: "C", Href: "/a/c", Level: 2, ParentID: &a})

	// Move C under B, then promote it to level 1 by clearing the parent.
	require.NoError(t, s.Update(ctx, c, Patch{ParentID: nullable.Of(b)}))
	it, _ := s.Get(ctx, c)
	assert.Equal(t, b, *it.ParentID)

	err := s.Update(ctx, c, Patch{Level: intp(1)})
	assert.Equal(t, "Level 1 items cannot have a parent_id", cmserr.Message(err))

	require.NoError(t, s.Update(ctx, c, Patch{Level: intp(1), ParentID: nullable.Null[string]()}))
	it, _ = s.Get(ctx, c)
	assert.Equal(t, 1, it.Level)
	assert.Nil(t, it.ParentID)

	// Href uniqueness on rename; keeping the same href is fine.
	err = s.Update(ctx, c, Patch{Href: strp("/a")})
	assert.True(t, cmserr.Is(err, cmserr.KindConflict))
	require.NoError(t, s.Update(ctx, a, Patch{Href: strp("/a"), LabelEN: strp("A!")}))

	// An item with children cannot drop to level 2.
	mustCreate(t, s, NewItem{LabelEN: "D", Href: "/b/d", Level: 2, ParentID: &b})
	err = s.Update(ctx, b, Patch{Level: intp(2), ParentID: nullable.Of(a)})
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))

	err = s.Update(ctx, "missing", Patch{LabelEN: strp("x")})
	assert.True(t, cmserr.Is(err, cmserr.KindNotFound))
}

func TestBlankOptionalFieldsAreNull(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()
	blank := ""

	id := mustCreate(t, s, NewItem{LabelEN: "About", Href: "/about", Level: 1, ParentID: &blank, Icon: &blank})
	raw, err := store.Get(ctx, Collection, id)
	require.NoError(t, err)
	assert.Nil(t, raw["parent_id"])
	assert.Nil(t, raw["icon"])

	require.NoError(t, s.Update(ctx, id, Patch{
		Level:    intp(1),
		ParentID: nullable.Of(""),
		Icon:     nullable.Of(""),
		LabelAR:  nullable.Of("حول"),
	}))
	it, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, it.ParentID)
	assert.Nil(t, it.Icon)
	assert.Equal(t, "حول", *it.LabelAR)

	_, err = s.Create(ctx, NewItem{LabelEN: "Team", Href: "/about/team", Level: 2, ParentID: &blank})
	assert.Equal(t, "Level 2 items must have a parent_id", cmserr.Message(err))
}
