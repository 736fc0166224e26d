// internal/api/respond.go
//
// JSON envelope helpers.
//
// Every response is one of
//
//	{"success":true,"data":…,"count":n}
//	{"success":true,"id":"…","message":"…"}
//	{"success":true,"message":"…"}
//	{"success":false,"error":"…"}
//
// Error status codes come from the cmserr kind; untagged errors are logged
// and reported as a generic 500.

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/yanizio/k9cms/internal/cmserr"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitzero"`
	ID      string `json:"id,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Counted *bool  `json:"counted,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func item(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func list[T any](w http.ResponseWriter, items []T) {
	n := len(items)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: items, Count: &n})
}

func created(w http.ResponseWriter, id, msg string) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, ID: id, Message: msg})
}

func done(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msg})
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := cmserr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, envelope{Error: cmserr.Message(err)})
}

// decode reads a JSON body into dst.  With optional set an empty body
// leaves dst untouched.
func decode(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return cmserr.Validation("Invalid JSON body")
	}
	return nil
}

/*──────────────────────────── query helpers ────────────────────────────────*/

func queryBool(r *http.Request, name string) bool {
	return r.URL.Query().Get(name) == "true"
}

// queryTriBool returns nil when name is absent.
func queryTriBool(r *http.Request, name string) *bool {
	q := r.URL.Query()
	if !q.Has(name) {
		return nil
	}
	v := q.Get(name) == "true"
	return &v
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, cmserr.Validation("Invalid %s parameter", name)
	}
	return n, nil
}
