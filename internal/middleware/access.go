// internal/middleware/access.go
//
// Access logging and HTTP metrics.
//
// Logs one structured line per request through the global zap logger and
// feeds metrics.HTTPRequestsTotal / HTTPRequestDuration.  The route label
// is chi's matched pattern ("/api/pages/{id}"), never the raw path, so
// label cardinality stays bounded.  When requestinfo.Enrich runs first the
// line also carries country, device class, and the bot flag.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/k9cms/internal/metrics"
	"github.com/yanizio/k9cms/internal/requestinfo"
)

// Access records every request after the handler returns.
func Access(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		elapsed := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		}
		if info := requestinfo.FromContext(r.Context()); info != nil {
			fields = append(fields,
				zap.String("country", info.Geo.CountryISO),
				zap.String("device", info.UA.Device),
				zap.Bool("bot", info.UA.IsBot))
		}
		switch {
		case status >= 500:
			zap.L().Error("request", fields...)
		case status >= 400:
			zap.L().Warn("request", fields...)
		default:
			zap.L().Info("request", fields...)
		}
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
