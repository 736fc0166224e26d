// internal/docstore/instrument.go
//
// Store decorator that feeds Prometheus and the debug log.

package docstore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/k9cms/internal/metrics"
)

type instrumented struct {
	next    Store
	backend string
}

// Instrument wraps s so every call is counted under backend.
func Instrument(s Store, backend string) Store {
	return &instrumented{next: s, backend: backend}
}

func (i *instrumented) observe(op, collection string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(i.backend, op, outcome).Inc()
	metrics.StoreOperationDuration.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())

	if outcome == "error" {
		zap.L().Warn("docstore call failed",
			zap.String("backend", i.backend),
			zap.String("op", op),
			zap.String("collection", collection),
			zap.Error(err))
		return
	}
	zap.L().Debug("docstore call",
		zap.String("backend", i.backend),
		zap.String("op", op),
		zap.String("collection", collection),
		zap.Duration("took", time.Since(start)))
}

func (i *instrumented) Get(ctx context.Context, collection, id string) (d Document, err error) {
	defer func(start time.Time) { i.observe("get", collection, start, err) }(time.Now())
	return i.next.Get(ctx, collection, id)
}

func (i *instrumented) List(ctx context.Context, collection string, q Query) (ds []Document, err error) {
	defer func(start time.Time) { i.observe("list", collection, start, err) }(time.Now())
	return i.next.List(ctx, collection, q)
}

func (i *instrumented) Create(ctx context.Context, collection string, data Document) (id string, err error) {
	defer func(start time.Time) { i.observe("create", collection, start, err) }(time.Now())
	return i.next.Create(ctx, collection, data)
}

func (i *instrumented) Update(ctx context.Context, collection, id string, data Document) (err error) {
	defer func(start time.Time) { i.observe("update", collection, start, err) }(time.Now())
	return i.next.Update(ctx, collection, id, data)
}

func (i *instrumented) Delete(ctx context.Context, collection, id string) (err error) {
	defer func(start time.Time) { i.observe("delete", collection, start, err) }(time.Now())
	return i.next.Delete(ctx, collection, id)
}

func (i *instrumented) BatchUpdate(ctx context.Context, collection string, updates []Update) (err error) {
	defer func(start time.Time) { i.observe("batch_update", collection, start, err) }(time.Now())
	return i.next.BatchUpdate(ctx, collection, updates)
}

func (i *instrumented) Exists(ctx context.Context, collection, field string, value any) (ok bool, err error) {
	defer func(start time.Time) { i.observe("exists", collection, start, err) }(time.Now())
	return i.next.Exists(ctx, collection, field, value)
}

func (i *instrumented) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { i.observe("ping", "", start, err) }(time.Now())
	return i.next.Ping(ctx)
}

func (i *instrumented) Close() error { return i.next.Close() }
