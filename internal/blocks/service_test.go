package blocks

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/k9cms/internal/cmserr"
	"github.com/yanizio/k9cms/internal/docstore"
	"github.com/yanizio/k9cms/internal/keylock"
	"github.com/yanizio/k9cms/internal/nullable"
)

func newTestService() *Service {
	return NewService(docstore.NewMemory(), keylock.New(time.Second))
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }
func intp(n int) *int       { return &n }

func mustCreate(t *testing.T, s *Service, in NewBlock) string {
	t.Helper()
	id, err := s.Create(context.Background(), in)
	require.NoError(t, err)
	return id
}

func TestCreate_AppendsAndDefaults(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeText})
	}
	id := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeVideo})

	b, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, b.DisplayOrder)
	assert.True(t, b.IsVisible)
	assert.Equal(t, DefaultLayout(), b.Layout)
	assert.Nil(t, b.ParentBlockID)

	got, err := json.Marshal(b.Content)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"","controls":true,"autoplay":false}`, string(got))
}

func TestCreate_DefaultContentSurvivesStore(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	for _, typ := range Types {
		id := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: typ})
		b, err := s.Get(ctx, id)
		require.NoError(t, err)
		got, err := json.Marshal(b.Content)
		require.NoError(t, err)
		assert.Equal(t, wantDefaults[typ], string(got), typ)
	}
}

func TestCreate_ConcurrentAppendsGetDistinctOrders(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, NewBlock{PageID: "p1", BlockType: TypeDivider})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := s.ListByPage(ctx, "p1", false)
	require.NoError(t, err)
	require.Len(t, list, 10)
	for i, b := range list {
		assert.Equal(t, i, b.DisplayOrder)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.Create(ctx, NewBlock{PageID: "p1"})
	assert.Equal(t, "Missing required fields: page_id, block_type", cmserr.Message(err))

	_, err = s.Create(ctx, NewBlock{PageID: "p1", BlockType: "carousel"})
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))

	_, err = s.Create(ctx, NewBlock{PageID: "p1", BlockType: TypeSpacer, Content: json.RawMessage(`{"height":4}`)})
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))

	_, err = s.Create(ctx, NewBlock{PageID: "p1", BlockType: TypeText, ParentBlockID: strp("nope")})
	assert.Equal(t, "Parent block not found", cmserr.Message(err))

	other := mustCreate(t, s, NewBlock{PageID: "p2", BlockType: TypeSection})
	_, err = s.Create(ctx, NewBlock{PageID: "p1", BlockType: TypeText, ParentBlockID: &other})
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))
}

func TestUpdate_TypeChangeResetsContent(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeText, Content: json.RawMessage(`{"text":"hello"}`)})

	typ := TypeSpacer
	require.NoError(t, s.Update(ctx, id, Patch{BlockType: &typ}))
	b, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, TypeSpacer, b.BlockType)
	assert.Equal(t, &SpacerContent{Height: "2rem"}, b.Content)

	require.NoError(t, s.Update(ctx, id, Patch{Content: json.RawMessage(`{"height":"5rem"}`), IsVisible: boolp(false)}))
	b, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &SpacerContent{Height: "5rem"}, b.Content)
	assert.False(t, b.IsVisible)

	bad := Type("carousel")
	err = s.Update(ctx, id, Patch{BlockType: &bad})
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))

	err = s.Update(ctx, "missing", Patch{IsVisible: boolp(true)})
	assert.True(t, cmserr.Is(err, cmserr.KindNotFound))
}

func TestUpdate_ParentRules(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	sec := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeSection})
	child := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeColumns, ParentBlockID: &sec})

	err := s.Update(ctx, sec, Patch{ParentBlockID: nullable.Of(child)})
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))

	err = s.Update(ctx, sec, Patch{ParentBlockID: nullable.Of(sec)})
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))

	require.NoError(t, s.Update(ctx, child, Patch{ParentBlockID: nullable.Null[string]()}))
	b, err := s.Get(ctx, child)
	require.NoError(t, err)
	assert.Nil(t, b.ParentBlockID)
}

func TestDelete_CascadesRecursively(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	root := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeSection})
	cols := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeColumns, ParentBlockID: &root})
	leaf := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeText, ParentBlockID: &cols})
	keep := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeText})

	require.NoError(t, s.Delete(ctx, root))
	for _, id := range []string{root, cols, leaf} {
		_, err := s.Get(ctx, id)
		assert.True(t, cmserr.Is(err, cmserr.KindNotFound), id)
	}
	_, err := s.Get(ctx, keep)
	assert.NoError(t, err)

	err = s.Delete(ctx, root)
	assert.Equal(t, "Block not found", cmserr.Message(err))
}

func TestDeletePageBlocks(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeText})
	mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeHero})
	other := mustCreate(t, s, NewBlock{PageID: "p2", BlockType: TypeText})

	n, err := s.DeletePageBlocks(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := s.ListByPage(ctx, "p1", false)
	require.NoError(t, err)
	assert.Empty(t, left)
	_, err = s.Get(ctx, other)
	assert.NoError(t, err)
}

func TestReorderAndListVisible(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeText})
	b := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeText})
	c := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeText, IsVisible: boolp(false)})

	require.NoError(t, s.Reorder(ctx, []OrderUpdate{{ID: a, DisplayOrder: 2}, {ID: b, DisplayOrder: 0}, {ID: c, DisplayOrder: 1}}))
	all, err := s.ListByPage(ctx, "p1", false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{b, c, a}, []string{all[0].ID, all[1].ID, all[2].ID})

	visible, err := s.ListByPage(ctx, "p1", true)
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	err = s.Reorder(ctx, []OrderUpdate{{ID: a, DisplayOrder: 0}, {ID: "ghost", DisplayOrder: 1}})
	assert.True(t, cmserr.Is(err, cmserr.KindNotFound))
	got, _ := s.Get(ctx, a)
	assert.Equal(t, 2, got.DisplayOrder)

	err = s.Reorder(ctx, []OrderUpdate{{DisplayOrder: 1}})
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))
}

func TestToggleVisibility(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeDivider})

	v, err := s.ToggleVisibility(ctx, id)
	require.NoError(t, err)
	assert.False(t, v)
	v, err = s.ToggleVisibility(ctx, id)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = s.ToggleVisibility(ctx, "missing")
	assert.True(t, cmserr.Is(err, cmserr.KindNotFound))
}

func TestDuplicate(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	sec := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeSection})
	src := mustCreate(t, s, NewBlock{
		PageID:        "p1",
		BlockType:     TypeCard,
		Content:       json.RawMessage(`{"title":"Obedience","description":"Basics"}`),
		ParentBlockID: &sec,
		DisplayOrder:  intp(7),
	})

	same, err := s.Duplicate(ctx, src, "")
	require.NoError(t, err)
	cp, err := s.Get(ctx, same)
	require.NoError(t, err)
	assert.Equal(t, "p1", cp.PageID)
	assert.Equal(t, 2, cp.DisplayOrder)
	require.NotNil(t, cp.ParentBlockID)
	assert.Equal(t, sec, *cp.ParentBlockID)
	assert.Equal(t, &CardContent{Title: "Obedience", Description: "Basics"}, cp.Content)

	moved, err := s.Duplicate(ctx, src, "p2")
	require.NoError(t, err)
	cp, err = s.Get(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, "p2", cp.PageID)
	assert.Equal(t, 0, cp.DisplayOrder)
	assert.Nil(t, cp.ParentBlockID)

	_, err = s.Duplicate(ctx, "missing", "")
	assert.True(t, cmserr.Is(err, cmserr.KindNotFound))
}

func TestUpdate_MoveToAnotherPage(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	section := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeSection})
	cols := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeColumns, ParentBlockID: &section})
	text := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeText, ParentBlockID: &cols})

	// Moving the middle block detaches it from the section and carries
	// its nested text block along.
	require.NoError(t, s.Update(ctx, cols, Patch{PageID: strp("p2")}))

	moved, err := s.Get(ctx, cols)
	require.NoError(t, err)
	assert.Equal(t, "p2", moved.PageID)
	assert.Nil(t, moved.ParentBlockID)

	child, err := s.Get(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, "p2", child.PageID)
	assert.Equal(t, cols, *child.ParentBlockID)

	n, err := s.DeletePageBlocks(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = s.Get(ctx, text)
	require.NoError(t, err, "moved subtree survives clearing the old page")

	// An explicit parent is checked against the new page.
	other := mustCreate(t, s, NewBlock{PageID: "p3", BlockType: TypeSection})
	err = s.Update(ctx, cols, Patch{PageID: strp("p1"), ParentBlockID: nullable.Of(other)})
	assert.Equal(t, "Parent block must be on the same page", cmserr.Message(err))
	require.NoError(t, s.Update(ctx, cols, Patch{PageID: strp("p3"), ParentBlockID: nullable.Of(other)}))

	moved, err = s.Get(ctx, cols)
	require.NoError(t, err)
	assert.Equal(t, "p3", moved.PageID)
	assert.Equal(t, other, *moved.ParentBlockID)
	child, err = s.Get(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, "p3", child.PageID)
}

func TestCreate_BlankParentIsTopLevel(t *testing.T) {
	s := newTestService()
	id := mustCreate(t, s, NewBlock{PageID: "p1", BlockType: TypeText, ParentBlockID: strp("")})

	b, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, b.ParentBlockID)
}
