// internal/vault/vault.go
//
// HashiCorp Vault client used by the config loader.
//
// Context
// -------
//   - Wraps the Vault Go SDK with a KV-v2 read helper and a per-key TTL
//     cache so repeated config reloads do not hammer Vault.
//   - Keeps the process token alive with a background renewer that stops
//     when the context passed to New is cancelled.
//
// Workflow
// --------
//  1. cli, err := vault.New(ctx, zap.S().Infof)
//  2. pw, err  := cli.GetKV(ctx, "secret/k9cms", "db_password", 10*time.Minute)
//
// Environment: VAULT_ADDR and VAULT_TOKEN (falls back to ~/.vault-token).
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

/*──────────────────────────── client ───────────────────────────────────────*/

// Client is safe for concurrent use.  The zero value is invalid.
type Client struct {
	api   *vault.Client
	logFn func(string, ...any)
	now   func() time.Time

	mu    sync.RWMutex
	cache map[string]cached // "path#key" → value + expiry
}

type cached struct {
	val string
	exp time.Time
}

// New builds a client from the environment and starts token renewal.
func New(ctx context.Context, logFn func(string, ...any)) (*Client, error) {
	if logFn == nil {
		logFn = func(string, ...any) {}
	}

	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}
	api, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		api.SetToken(tok)
	}

	c := newClient(api, logFn)
	go c.renewLoop(ctx)
	return c, nil
}

func newClient(api *vault.Client, logFn func(string, ...any)) *Client {
	return &Client{api: api, logFn: logFn, now: time.Now, cache: make(map[string]cached)}
}

// GetKV reads key from the KV-v2 secret at secretPath ("<mount>/<path>").
// With ttl > 0 the value is cached for that long.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("vault: secret path and key must be non-empty")
	}
	canonical := secretPath + "#" + key

	if v, ok := c.cached(canonical); ok {
		return v, nil
	}

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}
	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("vault: key %q not found in secret %q", key, secretPath)
	}
	val, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("vault: value at %s is not a string", canonical)
	}

	if ttl > 0 {
		c.mu.Lock()
		c.cache[canonical] = cached{val: val, exp: c.now().Add(ttl)}
		c.mu.Unlock()
	}
	return val, nil
}

func (c *Client) cached(canonical string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cv, ok := c.cache[canonical]
	if !ok || !c.now().Before(cv.exp) {
		return "", false
	}
	return cv.val, true
}

/*──────────────────────────── token renewal ────────────────────────────────*/

func (c *Client) renewLoop(ctx context.Context) {
	for ctx.Err() == nil {
		backoff(ctx, c.renewOnce(ctx))
	}
}

// renewOnce runs one renewer until it stops and returns how long to wait
// before the next attempt.
func (c *Client) renewOnce(ctx context.Context) time.Duration {
	sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
	if err != nil {
		c.logFn("vault: token renew self failed: %v", err)
		return 30 * time.Second
	}
	if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
		c.logFn("vault: token is not renewable, sleeping 1h")
		return time.Hour
	}

	w, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{
		Secret: sec,
		Grace:  15 * time.Second,
	})
	if err != nil {
		c.logFn("vault: lifetime watcher init error: %v", err)
		return 30 * time.Second
	}
	go w.Start()
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0
		case err := <-w.DoneCh():
			if err != nil {
				c.logFn("vault: token renewal stopped: %v", err)
			}
			return 15 * time.Second
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.logFn("vault: token renewed, ttl=%ds", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

// splitMount turns "secret/k9cms" into ("secret", "k9cms").
func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

func backoff(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
