// internal/config/model.go
//
// Typed configuration model for the CMS backend.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                      – dotenv values,
//   • `conf/global.yaml`                   – primary static file,
//   • `K9_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling (see secrets.go), so the
// model never stores Vault URIs, only plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • `Surreal` is validated only when the surreal driver is selected.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Database section
//

// Database selects the document-store backend.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host,
// port, or flags without touching Vault.  The *secret* portion
// (`Password`) normally comes from Vault and is spliced into the single
// `%s` verb of the template at runtime.
type Database struct {
	Driver   string `koanf:"driver"   validate:"required,oneof=mysql surreal memory"`
	DSN      string `koanf:"dsn"      validate:"required_if=Driver mysql"`
	Password string `koanf:"password"`
	MaxOpen  int    `koanf:"max_open" validate:"gte=0"`
	MaxIdle  int    `koanf:"max_idle" validate:"gte=0"`
}

//
// SurrealDB section
//

// Surreal holds connection settings for the SurrealDB backend.
type Surreal struct {
	URL       string `koanf:"url"       validate:"required,url"`
	Namespace string `koanf:"namespace" validate:"required"`
	Database  string `koanf:"database"  validate:"required"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

//
// CMS section
//

// CMS holds behavioural switches for the content services.
type CMS struct {
	// CascadePageBlocks removes a page's blocks when the page is deleted.
	CascadePageBlocks bool          `koanf:"cascade_page_blocks"`
	LockTimeout       time.Duration `koanf:"lock_timeout" validate:"gte=0"`
}

// Logging controls the zap level.
type Logging struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

// GeoIP points at an optional GeoLite2-City database.
type GeoIP struct {
	CityDB string `koanf:"city_db"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // K9_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Surreal  Surreal  `koanf:"surreal" validate:"-"`
	CMS      CMS      `koanf:"cms"`
	Logging  Logging  `koanf:"logging"`
	GeoIP    GeoIP    `koanf:"geoip"`
	Paths    Paths    `koanf:"-"`
}

// DatabaseDSN splices the password into the DSN template.
func (c *Config) DatabaseDSN() string {
	return spliceSecret(c.Database.DSN, c.Database.Password)
}
