// internal/docstore/docstore.go
//
// Document Store Adapter.
//
/*
Context
--------
The content services persist schemaless JSON documents grouped into named
collections (`navigation`, `pages`, `content_blocks`, …).  `Store` is the
one seam between those services and a concrete database: services receive
a Store by injection and never import a driver.

Contract
--------
  • Create generates the id and stamps `created_at` + `updated_at`.
  • Update merges fields and stamps `updated_at`; a missing id is
    ErrNotFound.
  • Delete is idempotent.
  • BatchUpdate is all-or-nothing with one shared timestamp.
  • Timestamp fields come back as time.Time no matter how the backend
    encodes them.
  • Backend failures are returned wrapped, never swallowed or retried.

Backends
--------
  • memory.go   – process-local maps (dev and tests).
  • mysql.go    – single `documents` table via sqlx.
  • surreal/    – SurrealDB via surrealdb.go.
*/
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get, Update, and BatchUpdate for unknown ids.
var ErrNotFound = errors.New("docstore: document not found")

// Well-known fields.
const (
	FieldID          = "id"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
	FieldPublishedAt = "published_at"
)

// timestampFields are converted to time.Time on read.
var timestampFields = []string{FieldCreatedAt, FieldUpdatedAt, FieldPublishedAt}

// Document is one stored record.  Values are JSON-compatible.
type Document map[string]any

// ID returns the document id, or "" when unset.
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// Decode copies d into dst (a pointer to a struct with json tags).
func (d Document) Decode(dst any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("docstore: encode document: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("docstore: decode document: %w", err)
	}
	return nil
}

// Encode turns a json-tagged struct (or map) into a Document.  Pointer
// fields tagged omitempty therefore act as "unset".
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	if d == nil {
		d = Document{}
	}
	return d, nil
}

// Direction orders List results.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Filter is an equality predicate on one top-level field.
type Filter struct {
	Field string
	Value any
}

// Eq is shorthand for Filter{field, value}.
func Eq(field string, value any) Filter { return Filter{Field: field, Value: value} }

// Query narrows and orders a List call.
type Query struct {
	Filters   []Filter
	OrderBy   string
	Direction Direction
	Limit     int
}

// Update is one entry of a BatchUpdate.
type Update struct {
	ID   string
	Data Document
}

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, q Query) ([]Document, error)
	Create(ctx context.Context, collection string, data Document) (string, error)
	Update(ctx context.Context, collection, id string, data Document) error
	Delete(ctx context.Context, collection, id string) error
	BatchUpdate(ctx context.Context, collection string, updates []Update) error
	Exists(ctx context.Context, collection, field string, value any) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

/*──────────────────────────── shared helpers ───────────────────────────────*/

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidField rejects names that cannot be embedded in a backend query.
func ValidField(name string) error {
	if !fieldRe.MatchString(name) {
		return fmt.Errorf("docstore: invalid field name %q", name)
	}
	return nil
}

// ValidateQuery checks every field name in q.
func ValidateQuery(q Query) error {
	for _, f := range q.Filters {
		if err := ValidField(f.Field); err != nil {
			return err
		}
	}
	if q.OrderBy != "" {
		if err := ValidField(q.OrderBy); err != nil {
			return err
		}
	}
	if q.Direction != "" && q.Direction != Asc && q.Direction != Desc {
		return fmt.Errorf("docstore: invalid direction %q", q.Direction)
	}
	if q.Limit < 0 {
		return fmt.Errorf("docstore: negative limit %d", q.Limit)
	}
	return nil
}

// NewID returns a fresh document id.
func NewID() string { return uuid.NewString() }

// timeLayout is fixed-width so encoded timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime encodes t for backends that store timestamps as strings.
func FormatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// Normalize converts string timestamp fields of d to time.Time in place
// and returns d.
func Normalize(d Document) Document {
	for _, f := range timestampFields {
		switch v := d[f].(type) {
		case string:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				d[f] = t.UTC()
			}
		case time.Time:
			d[f] = v.UTC()
		}
	}
	return d
}

// Payload returns a copy of d without the store-managed fields.
func Payload(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		out[k] = v
	}
	return out
}
