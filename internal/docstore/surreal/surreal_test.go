package surreal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/yanizio/k9cms/internal/docstore"
)

func TestSelectQuery(t *testing.T) {
	sql, vars, err := selectQuery("content_blocks", docstore.Query{
		Filters: []docstore.Filter{
			docstore.Eq("page_id", "p1"),
			docstore.Eq("parent_block_id", nil),
		},
		OrderBy: "display_order",
		Limit:   5,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM type::table($tb) WHERE page_id = $f0 AND "+
			"(parent_block_id IS NULL OR parent_block_id IS NONE) ORDER BY display_order ASC LIMIT $limit",
		sql)
	assert.Equal(t, map[string]any{"tb": "content_blocks", "f0": "p1", "limit": 5}, vars)
}

func TestSelectQuery_RejectsBadField(t *testing.T) {
	_, _, err := selectQuery("pages", docstore.Query{OrderBy: "title; REMOVE TABLE pages"})
	assert.Error(t, err)
}

func TestSelectQuery_IDFilterAndDesc(t *testing.T) {
	sql, vars, err := selectQuery("pages", docstore.Query{
		Filters:   []docstore.Filter{docstore.Eq("id", "abc")},
		OrderBy:   "updated_at",
		Direction: docstore.Desc,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM type::table($tb) WHERE id = type::thing($tb, $f0) ORDER BY updated_at DESC", sql)
	assert.Equal(t, "abc", vars["f0"])
}

func TestBatchStatement(t *testing.T) {
	sql, vars := batchStatement("navigation", []docstore.Update{
		{ID: "a", Data: docstore.Document{"display_order": 1}},
		{ID: "b", Data: docstore.Document{"display_order": 0, "id": "ignored"}},
	}, "2026-01-01T00:00:00.000000000Z")

	assert.True(t, strings.HasPrefix(sql, "BEGIN TRANSACTION;"))
	assert.True(t, strings.HasSuffix(sql, "COMMIT TRANSACTION;"))
	assert.Contains(t, sql, "LET $r1 = (UPDATE type::table($tb) MERGE $p1 WHERE id = type::thing($tb, $id1) RETURN AFTER);")
	assert.Contains(t, sql, notFoundMarker)

	assert.Equal(t, "b", vars["id1"])
	p1 := vars["p1"].(docstore.Document)
	assert.NotContains(t, p1, "id")
	assert.Equal(t, "2026-01-01T00:00:00.000000000Z", p1["updated_at"])
}

func TestToDocument(t *testing.T) {
	row := map[string]any{
		"id":           models.RecordID{Table: "pages", ID: "p-1"},
		"created_at":   "2026-02-03T04:05:06.000000000Z",
		"published_at": nil,
		"content":      map[any]any{"title": "Hi", "cards": []any{map[any]any{"title": "c"}}},
	}
	d := toDocument(row)

	assert.Equal(t, "p-1", d.ID())
	created, ok := d["created_at"].(time.Time)
	require.True(t, ok)
	assert.True(t, created.Equal(time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)))

	content := d["content"].(map[string]any)
	assert.Equal(t, "Hi", content["title"])
	card := content["cards"].([]any)[0].(map[string]any)
	assert.Equal(t, "c", card["title"])
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "x", recordKey("pages:x"))
	assert.Equal(t, "x", recordKey("pages:⟨x⟩"))
	assert.Equal(t, "x", recordKey(&models.RecordID{Table: "pages", ID: "x"}))
}
