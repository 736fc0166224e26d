// internal/docstore/memory.go
//
// In-process Store backend.
//
// Documents are kept JSON-encoded so callers can never alias stored maps,
// and so values compare the same way they would after a round trip through
// a real database.  Intended for development (`database.driver: memory`)
// and for service tests.

package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	seq  uint64
	data []byte
}

// Memory is a Store held in process memory.  Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	cols map[string]map[string]memEntry
	seq  uint64

	now   func() time.Time
	newID func() string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		cols:  make(map[string]map[string]memEntry),
		now:   time.Now,
		newID: NewID,
	}
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.cols[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeEntry(e)
}

func (m *Memory) List(_ context.Context, collection string, q Query) ([]Document, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}

	m.mu.RLock()
	entries := make([]memEntry, 0, len(m.cols[collection]))
	for _, e := range m.cols[collection] {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	var out []Document
	for _, e := range entries {
		d, err := decodeEntry(e)
		if err != nil {
			return nil, err
		}
		if matches(d, q.Filters) {
			out = append(out, d)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compareValues(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Direction == Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Create(_ context.Context, collection string, data Document) (string, error) {
	id := m.newID()
	now := m.now().UTC()

	d := Payload(data)
	d[FieldID] = id
	d[FieldCreatedAt] = now
	d[FieldUpdatedAt] = now

	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("memory create %s: %w", collection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cols[collection] == nil {
		m.cols[collection] = make(map[string]memEntry)
	}
	m.seq++
	m.cols[collection][id] = memEntry{seq: m.seq, data: raw}
	return id, nil
}

func (m *Memory) Update(_ context.Context, collection, id string, data Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(collection, id, data, m.now().UTC())
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cols[collection], id)
	return nil
}

func (m *Memory) BatchUpdate(_ context.Context, collection string, updates []Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range updates {
		if _, ok := m.cols[collection][u.ID]; !ok {
			return fmt.Errorf("batch update %s/%s: %w", collection, u.ID, ErrNotFound)
		}
	}
	now := m.now().UTC()
	for _, u := range updates {
		if err := m.applyLocked(collection, u.ID, u.Data, now); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Exists(_ context.Context, collection, field string, value any) (bool, error) {
	if err := ValidField(field); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.cols[collection] {
		d, err := decodeEntry(e)
		if err != nil {
			return false, err
		}
		if matches(d, []Filter{{Field: field, Value: value}}) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

// applyLocked merges data into an existing document.  Caller holds m.mu.
func (m *Memory) applyLocked(collection, id string, data Document, now time.Time) error {
	e, ok := m.cols[collection][id]
	if !ok {
		return ErrNotFound
	}
	var cur Document
	if err := json.Unmarshal(e.data, &cur); err != nil {
		return fmt.Errorf("memory update %s/%s: %w", collection, id, err)
	}
	for k, v := range Payload(data) {
		cur[k] = v
	}
	cur[FieldUpdatedAt] = now

	raw, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("memory update %s/%s: %w", collection, id, err)
	}
	m.cols[collection][id] = memEntry{seq: e.seq, data: raw}
	return nil
}

func decodeEntry(e memEntry) (Document, error) {
	var d Document
	if err := json.Unmarshal(e.data, &d); err != nil {
		return nil, fmt.Errorf("memory decode: %w", err)
	}
	return Normalize(d), nil
}

// matches compares values by their JSON encoding, so 2 == 2.0 and a
// missing field equals nil.
func matches(d Document, filters []Filter) bool {
	for _, f := range filters {
		a, errA := json.Marshal(d[f.Field])
		b, errB := json.Marshal(f.Value)
		if errA != nil || errB != nil || !bytes.Equal(a, b) {
			return false
		}
	}
	return true
}

// compareValues orders nil < bool < number < time < string.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case time.Time:
		return x.Compare(b.(time.Time))
	case string:
		y := b.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}
