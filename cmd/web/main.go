// cmd/web/main.go
//
// K-9 school CMS: HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Console logger so config errors are visible.
//
//  2. Load conf/global.yaml + conf/.env + K9_* environment, resolving
//     vault: references for the selected driver.
//
//  3. Rotating file logger at the configured level (tees to console when
//     running in a TTY).
//
//  4. Optional GeoLite2 database for request enrichment.
//
//  5. Document store for database.driver (memory, mysql, or surreal),
//     wrapped with Prometheus instrumentation.
//
//  6. Content services sharing one keylock.Locker, so per-page and
//     per-component writes are serialized across services.
//
//  7. chi router: request id, panic recovery, request info, access log,
//     security headers, optional HTTPS redirect, /api, /metrics.
//
//  8. Serve until SIGINT or SIGTERM, then drain in-flight requests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/k9cms/internal/api"
	"github.com/yanizio/k9cms/internal/blocks"
	"github.com/yanizio/k9cms/internal/components"
	"github.com/yanizio/k9cms/internal/config"
	"github.com/yanizio/k9cms/internal/database"
	"github.com/yanizio/k9cms/internal/docstore"
	"github.com/yanizio/k9cms/internal/docstore/surreal"
	"github.com/yanizio/k9cms/internal/keylock"
	"github.com/yanizio/k9cms/internal/logger"
	"github.com/yanizio/k9cms/internal/middleware"
	"github.com/yanizio/k9cms/internal/navigation"
	"github.com/yanizio/k9cms/internal/pages"
	"github.com/yanizio/k9cms/internal/requestinfo"
	"github.com/yanizio/k9cms/internal/server"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	logger.Bootstrap()
	if err := run(); err != nil {
		zap.L().Fatal("k9cms exited", zap.Error(err))
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Config and logger ───────────────────────────────────────────
	//
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := logger.New(cfg.Paths.Root, runningInTTY(), cfg.Logging.Level); err != nil {
		return fmt.Errorf("start logger: %w", err)
	}
	defer func() { _ = zap.L().Sync() }()

	if err := requestinfo.InitGeo(cfg.GeoIP.CityDB); err != nil {
		zap.L().Warn("geoip disabled", zap.Error(err))
	}
	defer func() { _ = requestinfo.CloseGeo() }()

	//
	// ── 2.  Document store ──────────────────────────────────────────────
	//
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	//
	// ── 3.  Services ────────────────────────────────────────────────────
	//
	locks := keylock.New(cfg.CMS.LockTimeout)
	blockSvc := blocks.NewService(store, locks)
	pageOpts := []pages.Option{pages.WithLocker(locks)}
	if cfg.CMS.CascadePageBlocks {
		pageOpts = append(pageOpts, pages.WithBlockCascade(blockSvc))
	}

	h := api.New(api.Deps{
		Navigation: navigation.NewService(store),
		Pages:      pages.NewService(store, pageOpts...),
		Blocks:     blockSvc,
		Components: components.NewService(store, locks),
		Store:      store,
	})

	//
	// ── 4.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestinfo.Enrich)
	r.Use(middleware.Access)
	r.Use(middleware.Security)
	r.Use(middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS))

	r.Mount("/api", h.Routes())
	r.Handle("/metrics", promhttp.Handler())

	zap.L().Info("k9cms starting",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("cascade_page_blocks", cfg.CMS.CascadePageBlocks),
		zap.Duration("lock_timeout", cfg.CMS.LockTimeout))

	return server.Run(ctx, server.New(cfg.HTTP.ListenAddr, r))
}

// openStore connects the backend named by database.driver.
func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		zap.L().Warn("using in-memory document store; data is lost on exit")
		return docstore.Instrument(docstore.NewMemory(), "memory"), nil

	case "mysql":
		opts := database.DefaultOptions()
		opts.MaxOpen = cfg.Database.MaxOpen
		opts.MaxIdle = cfg.Database.MaxIdle
		db, err := database.OpenWithOptions(ctx, cfg.DatabaseDSN(), opts)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		s := docstore.NewMySQL(db)
		sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.EnsureSchema(sctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		zap.L().Info("mysql document store online")
		return docstore.Instrument(s, "mysql"), nil

	case "surreal":
		s, err := surreal.Open(ctx, surreal.Config{
			URL:       cfg.Surreal.URL,
			Namespace: cfg.Surreal.Namespace,
			Database:  cfg.Surreal.Database,
			Username:  cfg.Surreal.Username,
			Password:  cfg.Surreal.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("connect surrealdb: %w", err)
		}
		return docstore.Instrument(s, "surreal"), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}
