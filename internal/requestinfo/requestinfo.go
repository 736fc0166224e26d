// internal/requestinfo/requestinfo.go
//
// Per-request client metadata: user-agent fingerprint and IP geolocation.
//
// The view counter uses IsBot to keep crawlers out of page view_count, and
// the access log records country and device class.  The structs are inert
// and safe to log.
//
// Dependencies
//   - github.com/avct/uasurfer          (UA parsing)
//   - github.com/oschwald/geoip2-golang (MaxMind lookup, optional)

package requestinfo

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"
)

/*──────────────────────────── types ────────────────────────────────────────*/

// UA holds the parsed user-agent properties.
type UA struct {
	Raw         string
	Browser     string // "Chrome", "Firefox", "Safari", …
	Version     string // "124.0.6367"
	OS          string
	OSVersion   string
	Device      string // "Desktop", "Phone", "Tablet", "Console", "Wearable", "TV", "Unknown"
	IsBot       bool
	PrimaryLang string // first Accept-Language tag
}

// Geo holds best-effort location hints; empty when no database is loaded.
type Geo struct {
	IP         net.IP
	CountryISO string
	City       string
}

// RequestInfo is stored in the request context by Enrich.
type RequestInfo struct {
	UA        UA
	Geo       Geo
	Path      string
	Timestamp time.Time
}

/*──────────────────────────── geo database ─────────────────────────────────*/

var (
	geoMu     sync.RWMutex
	geoReader *geoip2.Reader
)

// InitGeo opens a GeoLite2-City database.  An empty path disables
// geolocation.
func InitGeo(dbPath string) error {
	if dbPath == "" {
		return nil
	}
	r, err := geoip2.Open(dbPath)
	if err != nil {
		return fmt.Errorf("requestinfo: open geo db %s: %w", dbPath, err)
	}
	geoMu.Lock()
	old := geoReader
	geoReader = r
	geoMu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// CloseGeo releases the database opened by InitGeo.
func CloseGeo() error {
	geoMu.Lock()
	defer geoMu.Unlock()
	if geoReader == nil {
		return nil
	}
	err := geoReader.Close()
	geoReader = nil
	return err
}

/*──────────────────────────── context ──────────────────────────────────────*/

type ctxKey struct{}

// FromContext returns the value stored by Enrich, or nil.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

// WithInfo returns a copy of ctx carrying info.
func WithInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

/*──────────────────────────── parsing ──────────────────────────────────────*/

// IsBot reports whether the user-agent header belongs to a crawler.  An
// empty header counts as a bot.
func IsBot(uaHeader string) bool {
	if strings.TrimSpace(uaHeader) == "" {
		return true
	}
	return uasurfer.Parse(uaHeader).IsBot()
}

// ParseUA converts a raw header into UA.
func ParseUA(uaHeader, acceptLang string) UA {
	u := uasurfer.Parse(uaHeader)

	osName := strings.TrimPrefix(u.OS.Name.String(), "OS")
	if osName == "MacOSX" {
		osName = "macOS"
	}
	return UA{
		Raw:         uaHeader,
		Browser:     strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version:     versionString(u.Browser.Version),
		OS:          osName,
		OSVersion:   versionString(u.OS.Version),
		Device:      deviceString(u.DeviceType),
		IsBot:       strings.TrimSpace(uaHeader) == "" || u.IsBot(),
		PrimaryLang: primaryLang(acceptLang),
	}
}

// versionString renders 17.0.0 as "17", 17.3.0 as "17.3".
func versionString(v uasurfer.Version) string {
	switch {
	case v.Major == 0 && v.Minor == 0 && v.Patch == 0:
		return ""
	case v.Patch != 0:
		return strconv.Itoa(int(v.Major)) + "." + strconv.Itoa(int(v.Minor)) + "." + strconv.Itoa(int(v.Patch))
	case v.Minor != 0:
		return strconv.Itoa(int(v.Major)) + "." + strconv.Itoa(int(v.Minor))
	default:
		return strconv.Itoa(int(v.Major))
	}
}

func deviceString(dt uasurfer.DeviceType) string {
	switch dt {
	case uasurfer.DeviceComputer:
		return "Desktop"
	case uasurfer.DevicePhone:
		return "Phone"
	case uasurfer.DeviceTablet:
		return "Tablet"
	case uasurfer.DeviceConsole:
		return "Console"
	case uasurfer.DeviceWearable:
		return "Wearable"
	case uasurfer.DeviceTV:
		return "TV"
	default:
		return "Unknown"
	}
}

// primaryLang extracts the first language tag before any ";q=" weight.
func primaryLang(al string) string {
	if al == "" {
		return ""
	}
	tag := strings.TrimSpace(strings.Split(al, ",")[0])
	if i := strings.IndexByte(tag, ';'); i != -1 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

func lookupGeo(ip net.IP) Geo {
	geoMu.RLock()
	r := geoReader
	geoMu.RUnlock()
	if r == nil || ip == nil {
		return Geo{IP: ip}
	}
	rec, err := r.City(ip)
	if err != nil {
		return Geo{IP: ip}
	}
	return Geo{IP: ip, CountryISO: rec.Country.IsoCode, City: rec.City.Names["en"]}
}
