// internal/docstore/mysql.go
//
// MySQL Store backend.
//
/*
Context
--------
All collections share one table:

	documents(collection, id, data JSON, created_at, updated_at)

`data` holds every field except the store-managed id and timestamps,
which live in real columns so they index and sort natively.  Equality
filters compile to `JSON_EXTRACT(data, '$.field') = CAST(? AS JSON)` with
the value JSON-encoded, so strings, numbers, booleans, and nulls compare
by JSON semantics.  Field names are checked by ValidField before they are
spliced into a JSON path.

Updates use JSON_SET so untouched keys survive and explicit nulls are
stored as JSON null.  BatchUpdate runs every UPDATE in one transaction.

Notes
-----
  • The DSN should carry `parseTime=true` (timestamps scan into time.Time)
    and `clientFoundRows=true` (an UPDATE that changes nothing but the row
    exists still reports one row).
*/

package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const mysqlSchema = `CREATE TABLE IF NOT EXISTS documents (
	collection VARCHAR(64) NOT NULL,
	id CHAR(36) NOT NULL,
	data JSON NOT NULL,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	PRIMARY KEY (collection, id),
	KEY idx_documents_updated (collection, updated_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// MySQL is a Store over a sqlx handle.
type MySQL struct {
	db *sqlx.DB

	now   func() time.Time
	newID func() string
}

// NewMySQL wraps an open pool.  See internal/database for Open helpers.
func NewMySQL(db *sqlx.DB) *MySQL {
	return &MySQL{db: db, now: time.Now, newID: NewID}
}

// EnsureSchema creates the documents table when missing.
func (s *MySQL) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, mysqlSchema); err != nil {
		return fmt.Errorf("mysql ensure schema: %w", err)
	}
	return nil
}

type docRow struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r docRow) document() (Document, error) {
	var d Document
	if err := json.Unmarshal(r.Data, &d); err != nil {
		return nil, fmt.Errorf("mysql decode %s: %w", r.ID, err)
	}
	if d == nil {
		d = Document{}
	}
	d[FieldID] = r.ID
	d[FieldCreatedAt] = r.CreatedAt
	d[FieldUpdatedAt] = r.UpdatedAt
	return Normalize(d), nil
}

func (s *MySQL) Get(ctx context.Context, collection, id string) (Document, error) {
	var row docRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql get %s/%s: %w", collection, id, err)
	}
	return row.document()
}

func (s *MySQL) List(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}

	var (
		sb   strings.Builder
		args = []any{collection}
	)
	sb.WriteString(`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ?`)
	for _, f := range q.Filters {
		clause, fargs, err := mysqlPredicate(f)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(clause)
		args = append(args, fargs...)
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Direction == Desc {
			dir = "DESC"
		}
		sb.WriteString(" ORDER BY " + mysqlField(q.OrderBy) + " " + dir)
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("mysql list %s: %w", collection, err)
	}

	out := make([]Document, 0, len(rows))
	for _, r := range rows {
		d, err := r.document()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *MySQL) Create(ctx context.Context, collection string, data Document) (string, error) {
	raw, err := json.Marshal(Payload(data))
	if err != nil {
		return "", fmt.Errorf("mysql create %s: %w", collection, err)
	}

	id := s.newID()
	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, string(raw), now, now); err != nil {
		return "", fmt.Errorf("mysql create %s: %w", collection, err)
	}
	return id, nil
}

func (s *MySQL) Update(ctx context.Context, collection, id string, data Document) error {
	return mysqlUpdate(ctx, s.db, collection, id, data, s.now().UTC())
}

func (s *MySQL) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("mysql delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MySQL) BatchUpdate(ctx context.Context, collection string, updates []Update) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql batch begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now().UTC()
	for _, u := range updates {
		if err = mysqlUpdate(ctx, tx, collection, u.ID, u.Data, now); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("mysql batch commit: %w", err)
	}
	return nil
}

func (s *MySQL) Exists(ctx context.Context, collection, field string, value any) (bool, error) {
	clause, fargs, err := mysqlPredicate(Filter{Field: field, Value: value})
	if err != nil {
		return false, err
	}

	var one int
	err = s.db.GetContext(ctx, &one,
		`SELECT 1 FROM documents WHERE collection = ? AND `+clause+` LIMIT 1`,
		append([]any{collection}, fargs...)...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mysql exists %s.%s: %w", collection, field, err)
	}
	return true, nil
}

func (s *MySQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *MySQL) Close() error                   { return s.db.Close() }

/*──────────────────────────── SQL builders ─────────────────────────────────*/

// mysqlField maps a document field to a column or JSON path expression.
// name must already have passed ValidField.
func mysqlField(name string) string {
	switch name {
	case FieldID, FieldCreatedAt, FieldUpdatedAt:
		return name
	}
	return "JSON_EXTRACT(data, '$." + name + "')"
}

func mysqlPredicate(f Filter) (string, []any, error) {
	if err := ValidField(f.Field); err != nil {
		return "", nil, err
	}
	switch f.Field {
	case FieldID, FieldCreatedAt, FieldUpdatedAt:
		return f.Field + " = ?", []any{f.Value}, nil
	}

	expr := mysqlField(f.Field)
	if f.Value == nil {
		return "(" + expr + " IS NULL OR JSON_TYPE(" + expr + ") = 'NULL')", nil, nil
	}
	raw, err := json.Marshal(f.Value)
	if err != nil {
		return "", nil, fmt.Errorf("mysql filter %s: %w", f.Field, err)
	}
	return expr + " = CAST(? AS JSON)", []any{string(raw)}, nil
}

// mysqlUpdate issues one merge UPDATE through ex (pool or transaction).
func mysqlUpdate(ctx context.Context, ex sqlx.ExecerContext, collection, id string, data Document, now time.Time) error {
	payload := Payload(data)
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if err := ValidField(k); err != nil {
			return err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("UPDATE documents SET ")
	if len(keys) > 0 {
		sb.WriteString("data = JSON_SET(data")
		for _, k := range keys {
			raw, err := json.Marshal(payload[k])
			if err != nil {
				return fmt.Errorf("mysql update %s/%s: %w", collection, id, err)
			}
			sb.WriteString(", '$." + k + "', CAST(? AS JSON)")
			args = append(args, string(raw))
		}
		sb.WriteString("), ")
	}
	sb.WriteString("updated_at = ? WHERE collection = ? AND id = ?")
	args = append(args, now, collection, id)

	res, err := ex.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("mysql update %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mysql update %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("mysql update %s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}
