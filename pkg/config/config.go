// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	// Directory scanned for plugin manifests (*.yaml, *.yml, *.json)
	PluginDir string

	// Host application's own OIDC client; plugins declaring `oidc: host` refresh against it
	OIDCTokenEndpoint string
	OIDCClientID      string

	// Upper bound for a single refresh-token exchange with the provider
	RefreshTimeout time.Duration

	// Session cookie carrying the host session id
	SessionCookie string
	SessionTTL    time.Duration
	SessionSeed   string // dev only: JSON list of sessions for the in-memory store

	CORSOrigins []string

	// Redis & Postgres (optional session backends)
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:               env("EMBEDAUTH_ENV", "dev"),
		HTTPAddr:          env("EMBEDAUTH_HTTP_ADDR", ":8080"),
		LogLevel:          env("LOG_LEVEL", ""),
		PluginDir:         env("PLUGIN_DIR", "./plugins"),
		OIDCTokenEndpoint: env("OIDC_TOKEN_ENDPOINT", ""),
		OIDCClientID:      env("OIDC_CLIENT_ID", ""),
		RefreshTimeout:    envDur("REFRESH_TIMEOUT_SEC", 10) * time.Second,
		SessionCookie:     env("SESSION_COOKIE", "sid"),
		SessionTTL:        envDur("SESSION_TTL_SEC", 8*60*60) * time.Second,
		SessionSeed:       env("SESSION_SEED_JSON", ""),
		CORSOrigins:       envList("CORS_ORIGINS"),
		RedisURL:          env("REDIS_URL", ""),
		DatabaseURL:       env("DATABASE_URL", ""),
	}
	if cfg.OIDCTokenEndpoint == "" || cfg.OIDCClientID == "" {
		log.Println("[WARN] OIDC_TOKEN_ENDPOINT/OIDC_CLIENT_ID not set; plugins using the host provider cannot refresh")
	}
	if cfg.RedisURL == "" && cfg.DatabaseURL == "" {
		log.Println("[WARN] no REDIS_URL or DATABASE_URL; sessions are kept in process memory")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}

func envList(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
