// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/makerdock/anonzora/internal/domain/model"
)

// minSessionSecretLen is the shortest accepted HS256 session key.
const minSessionSecretLen = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr         string
	DBPath             string
	RedisAddr          string
	RedisDB            int
	RPCURLs            map[uint64]string
	VKDir              string
	ActionsFile        string
	SessionSecret      string
	RelayURLs          map[model.Platform]string
	RelayToken         string
	DedupTTL           time.Duration
	ExecuteConcurrency int
}

// UsesRedis reports whether deduplication is shared through Redis. Without an
// address the process falls back to an in-memory store that only protects a
// single replica.
func (c *Config) UsesRedis() bool {
	return c.RedisAddr != ""
}

// HasVaultSessions reports whether vault endpoints can authenticate sessions.
func (c *Config) HasVaultSessions() bool {
	return c.SessionSecret != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// Optional variables with defaults: ANONZORA_LISTEN_ADDR (127.0.0.1:8080),
// ANONZORA_DB_PATH (anonzora.db), ANONZORA_REDIS_DB (0), ANONZORA_VK_DIR (keys),
// ANONZORA_DEDUP_TTL (5m), ANONZORA_EXECUTE_CONCURRENCY (4).
// ANONZORA_RPC_URLS and ANONZORA_RELAY_URLS are comma-separated key=url lists.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:         envOr("ANONZORA_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:             envOr("ANONZORA_DB_PATH", "anonzora.db"),
		RedisAddr:          os.Getenv("ANONZORA_REDIS_ADDR"),
		VKDir:              envOr("ANONZORA_VK_DIR", "keys"),
		ActionsFile:        os.Getenv("ANONZORA_ACTIONS_FILE"),
		SessionSecret:      os.Getenv("ANONZORA_SESSION_SECRET"),
		RelayToken:         os.Getenv("ANONZORA_RELAY_TOKEN"),
		DedupTTL:           5 * time.Minute,
		ExecuteConcurrency: 4,
	}

	if v, ok := os.LookupEnv("ANONZORA_REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("ANONZORA_REDIS_DB must be a non-negative integer, got %q", v)
		}
		cfg.RedisDB = n
	}

	if v, ok := os.LookupEnv("ANONZORA_DEDUP_TTL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ANONZORA_DEDUP_TTL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("ANONZORA_DEDUP_TTL must be positive, got %s", parsed)
		}
		cfg.DedupTTL = parsed
	}

	if v, ok := os.LookupEnv("ANONZORA_EXECUTE_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("ANONZORA_EXECUTE_CONCURRENCY must be a positive integer, got %q", v)
		}
		cfg.ExecuteConcurrency = n
	}

	if cfg.SessionSecret != "" && len(cfg.SessionSecret) < minSessionSecretLen {
		return nil, fmt.Errorf("ANONZORA_SESSION_SECRET must be at least %d bytes", minSessionSecretLen)
	}

	rpc, err := parsePairs("ANONZORA_RPC_URLS")
	if err != nil {
		return nil, err
	}
	cfg.RPCURLs = make(map[uint64]string, len(rpc))
	for k, u := range rpc {
		chainID, err := strconv.ParseUint(k, 10, 64)
		if err != nil || chainID == 0 {
			return nil, fmt.Errorf("ANONZORA_RPC_URLS has invalid chain id %q", k)
		}
		cfg.RPCURLs[chainID] = u
	}

	relay, err := parsePairs("ANONZORA_RELAY_URLS")
	if err != nil {
		return nil, err
	}
	cfg.RelayURLs = make(map[model.Platform]string, len(relay))
	for k, u := range relay {
		p := model.Platform(strings.ToLower(k))
		if !p.Valid() {
			return nil, fmt.Errorf("ANONZORA_RELAY_URLS has unknown platform %q", k)
		}
		cfg.RelayURLs[p] = u
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// parsePairs reads a "key=url,key=url" variable. Each URL must be absolute
// http(s) and each key may appear once.
func parsePairs(key string) (map[string]string, error) {
	out := make(map[string]string)

	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return out, nil
	}

	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		k, raw, ok := strings.Cut(entry, "=")
		k, raw = strings.TrimSpace(k), strings.TrimSpace(raw)
		if !ok || k == "" || raw == "" {
			return nil, fmt.Errorf("%s entry %q must be key=url", key, entry)
		}
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("%s lists %q more than once", key, k)
		}

		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%s entry %q has invalid url", key, k)
		}
		out[k] = raw
	}

	return out, nil
}
