package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"EMBEDAUTH_ENV", "PLUGIN_DIR", "REFRESH_TIMEOUT_SEC", "SESSION_COOKIE", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "./plugins", cfg.PluginDir)
	assert.Equal(t, 10*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, "sid", cfg.SessionCookie)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REFRESH_TIMEOUT_SEC", "3")
	t.Setenv("SESSION_TTL_SEC", "-1")
	t.Setenv("CORS_ORIGINS", " https://a.example, ,https://b.example")
	t.Setenv("OIDC_TOKEN_ENDPOINT", "https://host.example/token")

	cfg := Load()
	assert.Equal(t, 3*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, 8*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "https://host.example/token", cfg.OIDCTokenEndpoint)
}
