package components

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanizio/k9cms/internal/blocks"
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

func mustComponent(t *testing.T, s *Service, name string, cat Category) string {
	t.Helper()
	id, err := s.Create(context.Background(), NewComponent{Name: name, Category: cat})
	require.NoError(t, err)
	return id
}

func TestCreate(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := mustComponent(t, s, "Site header", CategoryHeader)

	c, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, c.IsActive)
	assert.Equal(t, 0, c.UsageCount)
	assert.Equal(t, CategoryHeader, c.Category)

	_, err = s.Create(ctx, NewComponent{Name: "x"})
	assert.Equal(t, "Missing required fields: name, category", cmserr.Message(err))

	_, err = s.Create(ctx, NewComponent{Name: "x", Category: "banner"})
	assert.True(t, cmserr.Is(err, cmserr.KindValidation))

	_, err = s.Get(ctx, "missing")
	assert.Equal(t, "Component not found", cmserr.Message(err))
}

func TestList(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	mustComponent(t, s, "Footer links", CategoryFooter)
	mustComponent(t, s, "Agility hero", CategoryHero)
	_, err := s.Create(ctx, NewComponent{
		Name: "Contact form", Category: CategoryForm,
		Description: strp("Enquiry about puppy classes"), IsActive: boolp(false),
	})
	require.NoError(t, err)

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Agility hero", all[0].Name)
	assert.Equal(t, "Footer links", all[2].Name)

	active, err := s.List(ctx, ListOptions{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	hits, err := s.List(ctx, ListOptions{Search: "PUPPY"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Contact form", hits[0].Name)

	footers, err := s.List(ctx, ListOptions{Category: CategoryFooter})
	require.NoError(t, err)
	assert.Len(t, footers, 1)
}

func TestUpdate(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	id := mustComponent(t, s, "Card", CategoryCard)

	require.NoError(t, s.Update(ctx, id, Patch{
		Name:        strp("Trainer card"),
		IsActive:    boolp(false),
		Description: nullable.Of("Profile card"),
	}))
	c, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Trainer card", c.Name)
	assert.False(t, c.IsActive)
	require.NotNil(t, c.Description)
	assert.Equal(t, "Profile card", *c.Description)

	require.NoError(t, s.Update(ctx, id, Patch{Description: nullable.Null[string]()}))
	c, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, c.Description)

	bad := Category("banner")
	assert.True(t, cmserr.Is(s.Update(ctx, id, Patch{Category: &bad}), cmserr.KindValidation))
	assert.True(t, cmserr.Is(s.Update(ctx, "missing", Patch{Name: strp("x")}), cmserr.KindNotFound))
}

func TestBlockConfigurations(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	comp := mustComponent(t, s, "Hero", CategoryHero)

	first, err := s.CreateBlockConfiguration(ctx, NewBlockConfiguration{ComponentID: comp, BlockType: blocks.TypeHero})
	require.NoError(t, err)
	second, err := s.CreateBlockConfiguration(ctx, NewBlockConfiguration{
		ComponentID: comp, BlockType: blocks.TypeCTA,
		Content: json.RawMessage(`{"heading":"Book a session","primary_button_text":"Book","primary_button_link":"/book"}`),
	})
	require.NoError(t, err)

	cfgs, err := s.BlockConfigurations(ctx, comp)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, first, cfgs[0].ID)
	assert.Equal(t, second, cfgs[1].ID)
	assert.Equal(t, 1, cfgs[1].DisplayOrder)
	assert.Equal(t, &blocks.HeroContent{Alignment: "center"}, cfgs[0].Content)
	assert.Equal(t, blocks.DefaultLayout(), cfgs[0].Layout)

	typ := blocks.TypeDivider
	require.NoError(t, s.UpdateBlockConfiguration(ctx, first, BlockConfigurationPatch{BlockType: &typ}))
	cfg, err := s.GetBlockConfiguration(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, &blocks.DividerContent{}, cfg.Content)

	withBlocks, err := s.GetWithBlocks(ctx, comp)
	require.NoError(t, err)
	assert.Len(t, withBlocks.Blocks, 2)

	require.NoError(t, s.DeleteBlockConfiguration(ctx, second))
	assert.True(t, cmserr.Is(s.DeleteBlockConfiguration(ctx, second), cmserr.KindNotFound))

	_, err = s.CreateBlockConfiguration(ctx, NewBlockConfiguration{BlockType: blocks.TypeText})
	assert.Equal(t, "Missing required fields: component_id, block_type", cmserr.Message(err))
	_, err = s.CreateBlockConfiguration(ctx, NewBlockConfiguration{ComponentID: "ghost", BlockType: blocks.TypeText})
	assert.True(t, cmserr.Is(err, cmserr.KindNotFound))
}

func TestInstances_UsageCountTracksLiveInstances(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	comp := mustComponent(t, s, "Newsletter", CategoryCTA)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.CreateInstance(ctx, NewInstance{ComponentID: comp, PageID: "p1", BlockID: "b"})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	c, err := s.Get(ctx, comp)
	require.NoError(t, err)
	assert.Equal(t, 8, c.UsageCount)

	for _, id := range ids[:3] {
		require.NoError(t, s.DeleteInstance(ctx, id))
	}
	live, err := s.Instances(ctx, InstanceFilter{ComponentID: comp})
	require.NoError(t, err)
	c, err = s.Get(ctx, comp)
	require.NoError(t, err)
	assert.Equal(t, len(live), c.UsageCount)
	assert.Equal(t, 5, c.UsageCount)
	assert.Equal(t, map[string]any{}, live[0].Overrides)

	err = s.DeleteInstance(ctx, ids[0])
	assert.True(t, cmserr.Is(err, cmserr.KindNotFound))
}

func TestCreateInstance_Validation(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.CreateInstance(ctx, NewInstance{ComponentID: "c"})
	assert.Equal(t, "Missing required fields: component_id, page_id, block_id", cmserr.Message(err))

	_, err = s.CreateInstance(ctx, NewInstance{ComponentID: "ghost", PageID: "p", BlockID: "b"})
	assert.Equal(t, "Component not found", cmserr.Message(err))
}

func TestIncrementUsageCount(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	comp := mustComponent(t, s, "Badge", CategoryGeneral)

	require.NoError(t, s.IncrementUsageCount(ctx, comp))
	require.NoError(t, s.IncrementUsageCount(ctx, comp))
	c, err := s.Get(ctx, comp)
	require.NoError(t, err)
	assert.Equal(t, 2, c.UsageCount)

	err = s.IncrementUsageCount(ctx, "missing")
	assert.Equal(t, "Component not found", cmserr.Message(err))
}

func TestDelete_Cascades(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	comp := mustComponent(t, s, "Sidebar", CategorySidebar)
	keep := mustComponent(t, s, "Other", CategorySidebar)

	_, err := s.CreateBlockConfiguration(ctx, NewBlockConfiguration{ComponentID: comp, BlockType: blocks.TypeText})
	require.NoError(t, err)
	_, err = s.CreateInstance(ctx, NewInstance{ComponentID: comp, PageID: "p1", BlockID: "b1"})
	require.NoError(t, err)
	_, err = s.CreateInstance(ctx, NewInstance{ComponentID: keep, PageID: "p1", BlockID: "b2"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, comp))
	_, err = s.Get(ctx, comp)
	assert.True(t, cmserr.Is(err, cmserr.KindNotFound))

	cfgs, err := s.BlockConfigurations(ctx, comp)
	require.NoError(t, err)
	assert.Empty(t, cfgs)
	onPage, err := s.Instances(ctx, InstanceFilter{PageID: "p1"})
	require.NoError(t, err)
	require.Len(t, onPage, 1)
	assert.Equal(t, keep, onPage[0].ComponentID)

	assert.True(t, cmserr.Is(s.Delete(ctx, comp), cmserr.KindNotFound))
}

// faultyStore fails usage_count writes, and optionally instance deletes.
type faultyStore struct {
	docstore.Store
	failDelete bool
}

func (f *faultyStore) Update(ctx context.Context, collection, id string, data docstore.Document) error {
	if _, ok := data["usage_count"]; ok && collection == Collection {
		return errors.New("write timeout")
	}
	return f.Store.Update(ctx, collection, id, data)
}

func (f *faultyStore) Delete(ctx context.Context, collection, id string) error {
	if f.failDelete && collection == InstanceCollection {
		return errors.New("connection reset")
	}
	return f.Store.Delete(ctx, collection, id)
}

func TestCreateInstance_UsageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{Store: docstore.NewMemory()}
	s := NewService(store, keylock.New(time.Second))
	comp := mustComponent(t, s, "Hero", CategoryHero)

	_, err := s.CreateInstance(ctx, NewInstance{ComponentID: comp, PageID: "p1", BlockID: "b1"})
	require.Error(t, err)
	assert.True(t, cmserr.Is(err, cmserr.KindInternal))

	insts, err := s.Instances(ctx, InstanceFilter{ComponentID: comp})
	require.NoError(t, err)
	assert.Empty(t, insts)
}

func TestCreateInstance_FailedRollbackIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	ctx := context.Background()
	store := &faultyStore{Store: docstore.NewMemory(), failDelete: true}
	s := NewService(store, keylock.New(time.Second))
	comp := mustComponent(t, s, "Hero", CategoryHero)

	_, err := s.CreateInstance(ctx, NewInstance{ComponentID: comp, PageID: "p1", BlockID: "b1"})
	require.Error(t, err)
	assert.True(t, cmserr.Is(err, cmserr.KindInternal))
	assert.Contains(t, err.Error(), "write timeout")
	assert.Contains(t, err.Error(), "connection reset")

	insts, err := s.Instances(ctx, InstanceFilter{ComponentID: comp})
	require.NoError(t, err)
	require.Len(t, insts, 1)

	entries := logs.FilterMessageSnippet("rollback failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, insts[0].ID, entries[0].ContextMap()["id"])
	assert.Equal(t, comp, entries[0].ContextMap()["component_id"])
}
