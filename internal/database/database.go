// Package database centralises sqlx connection helpers.  The default driver
// is go-sql-driver/mysql, which also works with MariaDB.
//
// Public entry points:
//
//	Open(ctx, dsn)                 – conservative pool sizes, one attempt.
//	OpenWithOptions(ctx, dsn, o)   – pool sizes plus retry policy.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  Callers should Close() the returned *sqlx.DB when no
// longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Options tunes the pool and the startup retry loop.
type Options struct {
	MaxOpen      int
	MaxIdle      int
	MaxLifetime  time.Duration
	Retries      int           // extra attempts after the first Ping
	RetryBackoff time.Duration // doubled after every failed attempt
}

// DefaultOptions: 15 max open, 5 idle, 30-minute lifetime, no retries.
func DefaultOptions() Options {
	return Options{MaxOpen: 15, MaxIdle: 5, MaxLifetime: 30 * time.Minute}
}

// Open returns a *sqlx.DB with DefaultOptions.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, DefaultOptions())
}

// OpenWithOptions opens a pool and pings it, retrying with exponential
// backoff while the server comes up (typical under docker-compose).
func OpenWithOptions(ctx context.Context, dsn string, o Options) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(o.MaxOpen)
	db.SetMaxIdleConns(o.MaxIdle)
	if o.MaxLifetime > 0 {
		db.SetConnMaxLifetime(o.MaxLifetime)
	}

	if err := pingWithRetry(ctx, db, o); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func pingWithRetry(ctx context.Context, db pinger, o Options) error {
	backoff := o.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt <= o.Retries; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if attempt == o.Retries {
			break
		}
		zap.S().Warnw("database ping failed, retrying",
			"attempt", attempt+1, "backoff", backoff, "err", err)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
	}
	return fmt.Errorf("database ping: %w", err)
}
