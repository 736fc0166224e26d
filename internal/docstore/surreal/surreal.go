// internal/docstore/surreal/surreal.go
//
// SurrealDB Store backend.
//
/*
Context
--------
Each collection maps to a SurrealDB table and each document to a record
whose id is the docstore UUID, so `pages:⟨uuid⟩` round-trips to the plain
string id the services use.  Every statement is parameterised; only field
names, already checked by docstore.ValidField, are spliced into SurrealQL.

Timestamps are stored as fixed-width RFC 3339 strings (docstore.FormatTime)
so ORDER BY on `created_at` or `updated_at` sorts chronologically without
depending on the server's datetime coercion.

BatchUpdate runs inside BEGIN/COMMIT TRANSACTION; a missing record THROWs,
which cancels the whole transaction.
*/
package surreal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
	"go.uber.org/zap"

	"github.com/yanizio/k9cms/internal/docstore"
)

const notFoundMarker = "docstore: record not found"

// Config holds connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Store is a docstore.Store over a SurrealDB connection.
type Store struct {
	db *surrealdb.DB

	now   func() time.Time
	newID func() string
}

// Open connects, signs in when credentials are set, and selects the
// namespace and database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("surreal connect %s: %w", cfg.URL, err)
	}

	if cfg.Username != "" {
		if _, err := db.SignIn(ctx, surrealdb.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("surreal signin: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("surreal use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	zap.L().Info("surreal connected",
		zap.String("url", cfg.URL),
		zap.String("namespace", cfg.Namespace),
		zap.String("database", cfg.Database))
	return New(db), nil
}

// New wraps an already-configured connection.
func New(db *surrealdb.DB) *Store {
	return &Store{db: db, now: time.Now, newID: docstore.NewID}
}

/*──────────────────────────── Store methods ────────────────────────────────*/

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	rows, err := s.rows(ctx, `SELECT * FROM type::thing($tb, $id)`, map[string]any{"tb": collection, "id": id})
	if err != nil {
		return nil, fmt.Errorf("surreal get %s/%s: %w", collection, id, err)
	}
	if len(rows) == 0 {
		return nil, docstore.ErrNotFound
	}
	return toDocument(rows[0]), nil
}

func (s *Store) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	sql, vars, err := selectQuery(collection, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows(ctx, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("surreal list %s: %w", collection, err)
	}
	out := make([]docstore.Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, toDocument(r))
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, collection string, data docstore.Document) (string, error) {
	id := s.newID()
	now := docstore.FormatTime(s.now())

	content := encodeTimes(docstore.Payload(data))
	content[docstore.FieldCreatedAt] = now
	content[docstore.FieldUpdatedAt] = now

	if _, err := s.rows(ctx, `CREATE type::thing($tb, $id) CONTENT $content`, map[string]any{
		"tb": collection, "id": id, "content": content,
	}); err != nil {
		return "", fmt.Errorf("surreal create %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, data docstore.Document) error {
	patch := encodeTimes(docstore.Payload(data))
	patch[docstore.FieldUpdatedAt] = docstore.FormatTime(s.now())

	rows, err := s.rows(ctx, updateStatement("$id", "$patch"), map[string]any{
		"tb": collection, "id": id, "patch": patch,
	})
	if err != nil {
		return fmt.Errorf("surreal update %s/%s: %w", collection, id, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("surreal update %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.rows(ctx, `DELETE type::thing($tb, $id)`, map[string]any{"tb": collection, "id": id}); err != nil {
		return fmt.Errorf("surreal delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) BatchUpdate(ctx context.Context, collection string, updates []docstore.Update) error {
	if len(updates) == 0 {
		return nil
	}
	now := docstore.FormatTime(s.now())
	sql, vars := batchStatement(collection, updates, now)

	res, err := surrealdb.Query[any](ctx, s.db, sql, vars)
	if err != nil {
		if strings.Contains(err.Error(), notFoundMarker) {
			return fmt.Errorf("surreal batch %s: %w", collection, docstore.ErrNotFound)
		}
		return fmt.Errorf("surreal batch %s: %w", collection, err)
	}
	if res == nil {
		return nil
	}
	for _, r := range *res {
		if r.Status == "OK" {
			continue
		}
		msg := fmt.Sprint(r.Result)
		if strings.Contains(msg, notFoundMarker) {
			return fmt.Errorf("surreal batch %s: %w", collection, docstore.ErrNotFound)
		}
		return fmt.Errorf("surreal batch %s: %s", collection, msg)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, collection, field string, value any) (bool, error) {
	if err := docstore.ValidField(field); err != nil {
		return false, err
	}
	pred, vars := predicate(0, docstore.Filter{Field: field, Value: value})
	vars["tb"] = collection

	rows, err := s.rows(ctx, `SELECT id FROM type::table($tb) WHERE `+pred+` LIMIT 1`, vars)
	if err != nil {
		return false, fmt.Errorf("surreal exists %s.%s: %w", collection, field, err)
	}
	return len(rows) > 0, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := surrealdb.Query[any](ctx, s.db, `RETURN true`, nil)
	return err
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// rows runs a single statement and returns its result set.
func (s *Store) rows(ctx context.Context, sql string, vars map[string]any) ([]map[string]any, error) {
	res, err := surrealdb.Query[[]map[string]any](ctx, s.db, sql, vars)
	if err != nil {
		return nil, err
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	last := (*res)[len(*res)-1]
	if last.Status != "OK" {
		return nil, fmt.Errorf("surreal status %s", last.Status)
	}
	return last.Result, nil
}

/*──────────────────────────── query builders ───────────────────────────────*/

// selectQuery renders a List call as SurrealQL.
func selectQuery(collection string, q docstore.Query) (string, map[string]any, error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return "", nil, err
	}

	vars := map[string]any{"tb": collection}
	var sb strings.Builder
	sb.WriteString("SELECT * FROM type::table($tb)")

	for i, f := range q.Filters {
		pred, fv := predicate(i, f)
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(pred)
		for k, v := range fv {
			vars[k] = v
		}
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Direction == docstore.Desc {
			dir = "DESC"
		}
		sb.WriteString(" ORDER BY " + q.OrderBy + " " + dir)
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT $limit")
		vars["limit"] = q.Limit
	}
	return sb.String(), vars, nil
}

// predicate renders filter i.  f.Field must already be valid.
func predicate(i int, f docstore.Filter) (string, map[string]any) {
	name := "f" + strconv.Itoa(i)
	switch {
	case f.Field == docstore.FieldID:
		return "id = type::thing($tb, $" + name + ")", map[string]any{name: f.Value}
	case f.Value == nil:
		return "(" + f.Field + " IS NULL OR " + f.Field + " IS NONE)", map[string]any{}
	default:
		return f.Field + " = $" + name, map[string]any{name: f.Value}
	}
}

// updateStatement merges patch into the record named by idVar, touching
// only records that already exist.
func updateStatement(idVar, patchVar string) string {
	return "UPDATE type::table($tb) MERGE " + patchVar +
		" WHERE id = type::thing($tb, " + idVar + ") RETURN AFTER"
}

// batchStatement renders an all-or-nothing multi-record merge.
func batchStatement(collection string, updates []docstore.Update, now string) (string, map[string]any) {
	vars := map[string]any{"tb": collection}
	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for i, u := range updates {
		n := strconv.Itoa(i)
		patch := encodeTimes(docstore.Payload(u.Data))
		patch[docstore.FieldUpdatedAt] = now
		vars["id"+n] = u.ID
		vars["p"+n] = patch

		sb.WriteString("LET $r" + n + " = (" + updateStatement("$id"+n, "$p"+n) + ");\n")
		sb.WriteString("IF array::len($r" + n + ") == 0 { THROW \"" + notFoundMarker + ": \" + $id" + n + " };\n")
	}
	sb.WriteString("COMMIT TRANSACTION;")
	return sb.String(), vars
}

/*──────────────────────────── value mapping ────────────────────────────────*/

// encodeTimes replaces time.Time values with sortable strings.
func encodeTimes(d docstore.Document) docstore.Document {
	for k, v := range d {
		switch t := v.(type) {
		case time.Time:
			d[k] = docstore.FormatTime(t)
		case *time.Time:
			if t == nil {
				d[k] = nil
			} else {
				d[k] = docstore.FormatTime(*t)
			}
		}
	}
	return d
}

// toDocument converts a decoded row into a JSON-friendly Document.
func toDocument(row map[string]any) docstore.Document {
	d := make(docstore.Document, len(row))
	for k, v := range row {
		if k == docstore.FieldID {
			d[k] = recordKey(v)
			continue
		}
		d[k] = plain(v)
	}
	return docstore.Normalize(d)
}

// recordKey extracts the id part of a record reference.
func recordKey(v any) string {
	switch id := v.(type) {
	case models.RecordID:
		return fmt.Sprint(id.ID)
	case *models.RecordID:
		if id == nil {
			return ""
		}
		return fmt.Sprint(id.ID)
	case string:
		if i := strings.IndexByte(id, ':'); i >= 0 {
			return strings.Trim(id[i+1:], "⟨⟩`")
		}
		return id
	default:
		return fmt.Sprint(v)
	}
}

// plain rewrites CBOR-decoded values into shapes encoding/json accepts.
func plain(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = plain(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = plain(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = plain(val)
		}
		return out
	case models.RecordID, *models.RecordID:
		return recordKey(x)
	default:
		return v
	}
}
