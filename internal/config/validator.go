// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, ensuring the binary never
// runs with partial, malformed, or missing configuration.
//
// Driver-specific sections are checked here as well: the `surreal` block
// only matters when `database.driver` selects it, and a MySQL DSN template
// must carry exactly one `%s` verb for the password.

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = validator.New()

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	if err := v.Struct(c); err != nil {
		return err
	}

	switch c.Database.Driver {
	case "mysql":
		if n := strings.Count(c.Database.DSN, "%s"); n != 1 {
			return fmt.Errorf("database.dsn must contain exactly one %%s verb, found %d", n)
		}
	case "surreal":
		if err := v.Struct(&c.Surreal); err != nil {
			return err
		}
	}
	return nil
}

// spliceSecret replaces the single %s verb in tmpl with secret.
func spliceSecret(tmpl, secret string) string {
	return strings.Replace(tmpl, "%s", secret, 1)
}
