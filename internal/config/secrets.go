// internal/config/secrets.go
//
// Vault reference resolution.
//
// Context
// -------
// Any string leaf of the merged Koanf tree shaped like
//
//	vault:<mount>/<path>#<key>
//
// is replaced by the secret value before unmarshal.  Only keys that the
// selected database driver actually reads are resolved, so a developer
// running `K9_DATABASE__DRIVER=memory` never needs a Vault server even
// though global.yaml references one.

package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/k9cms/internal/vault"
)

const vaultPrefix = "vault:"

// secretTTL bounds how long a fetched secret may be served from cache.
const secretTTL = 10 * time.Minute

// SecretResolver is the slice of the Vault client the loader needs.
type SecretResolver interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

// newResolver is swapped by tests.
var newResolver = func(ctx context.Context) (SecretResolver, error) {
	return vault.New(ctx, zap.S().Infof)
}

// resolveSecrets rewrites vault: references in k in place.
func resolveSecrets(k *koanf.Koanf) error {
	driver := k.String("database.driver")

	var refs []string
	for key, val := range k.All() {
		s, ok := val.(string)
		if !ok || !strings.HasPrefix(s, vaultPrefix) || !secretInUse(key, driver) {
			continue
		}
		refs = append(refs, key)
	}
	if len(refs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cli, err := newResolver(context.Background())
	if err != nil {
		return fmt.Errorf("vault client: %w", err)
	}

	for _, key := range refs {
		path, field, err := parseVaultRef(k.String(key))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		secret, err := cli.GetKV(ctx, path, field, secretTTL)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := k.Set(key, secret); err != nil {
			return err
		}
		zap.S().Debugw("config secret resolved", "key", key, "path", path)
	}
	return nil
}

// secretInUse reports whether key is read by the chosen driver.
func secretInUse(key, driver string) bool {
	switch {
	case strings.HasPrefix(key, "surreal."):
		return driver == "surreal"
	case strings.HasPrefix(key, "database."):
		return driver == "mysql"
	}
	return true
}

// parseVaultRef splits "vault:secret/app#field" into path and field.
func parseVaultRef(ref string) (path, field string, err error) {
	body := strings.TrimPrefix(ref, vaultPrefix)
	i := strings.LastIndexByte(body, '#')
	if i <= 0 || i == len(body)-1 {
		return "", "", fmt.Errorf("malformed vault reference %q (want vault:<path>#<key>)", ref)
	}
	return body[:i], body[i+1:], nil
}
