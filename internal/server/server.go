// internal/server/server.go
//
// HTTP server with hardened timeouts and graceful shutdown.
//
//   • ReadHeaderTimeout  aborts slow-loris headers (5 s)
//   • ReadTimeout        caps body upload time (10 s)
//   • WriteTimeout       caps total response time (15 s); every store call
//     takes the request context, so a stalled backend is cut off here too
//   • IdleTimeout        closes idle keep-alives (60 s)

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ShutdownGrace bounds how long Run waits for in-flight requests.
const ShutdownGrace = 15 * time.Second

// New constructs an *http.Server with the defaults above.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(zap.L().Named("http")),
	}
}

// Run serves srv until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		zap.L().Info("listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	zap.L().Info("shutting down", zap.Duration("grace", ShutdownGrace))
	sctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
