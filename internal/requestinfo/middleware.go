// internal/requestinfo/middleware.go
//
// HTTP middleware that attaches *RequestInfo to each request.
//
/*
Context
--------
Runs ahead of the access logger, which reads the result.  For every request it parses the
User-Agent and Accept-Language headers, extracts the left-most client IP
from X-Forwarded-For or X-Real-IP (falling back to RemoteAddr), performs
an optional GeoLite2 lookup, and stores the result in the request context.
*/
package requestinfo

import (
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Enrich attaches *RequestInfo and forwards.
func Enrich(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &RequestInfo{
			UA:        ParseUA(r.UserAgent(), r.Header.Get("Accept-Language")),
			Geo:       lookupGeo(clientIP(r)),
			Path:      r.URL.Path,
			Timestamp: time.Now().UTC(),
		}

		if ce := zap.L().Check(zap.DebugLevel, "request info"); ce != nil {
			ce.Write(
				zap.Stringer("ip", info.Geo.IP),
				zap.String("country", info.Geo.CountryISO),
				zap.String("browser", info.UA.Browser),
				zap.String("device", info.UA.Device),
				zap.Bool("bot", info.UA.IsBot),
				zap.String("path", info.Path),
			)
		}

		next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
	})
}

// clientIP returns the left-most parseable address from X-Forwarded-For or
// X-Real-IP, falling back to r.RemoteAddr ("ip:port").
func clientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip
			}
		}
	}
	if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return nil
}
