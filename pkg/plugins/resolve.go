package plugins

import (
	"strings"
	"time"
)

// DefaultBuffer is the renewal lead time used when a manifest does not set one.
const DefaultBuffer = 60 * time.Second

// HostProvider is the host application's own OIDC client, from process config.
type HostProvider struct {
	TokenEndpoint string
	ClientID      string
}

// ResolvedConfig is what a refresh exchange needs for one plugin.
type ResolvedConfig struct {
	TokenEndpoint string
	ClientID      string
	Buffer        time.Duration
}

// Resolve maps a manifest to its refresh configuration. ok is false when
// refresh is disabled or the block is incomplete; there is no fallback.
func Resolve(m Manifest, host HostProvider) (cfg ResolvedConfig, ok bool) {
	tr := m.TokenRefresh
	if tr == nil {
		return ResolvedConfig{}, false
	}
	switch ref := tr.OIDC.(type) {
	case UseHostProvider:
		cfg.TokenEndpoint, cfg.ClientID = host.TokenEndpoint, host.ClientID
	case CustomProvider:
		cfg.TokenEndpoint, cfg.ClientID = ref.TokenEndpoint, ref.ClientID
	default:
		return ResolvedConfig{}, false
	}
	cfg.TokenEndpoint = strings.TrimSpace(cfg.TokenEndpoint)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	if cfg.TokenEndpoint == "" || cfg.ClientID == "" {
		return ResolvedConfig{}, false
	}
	cfg.Buffer = DefaultBuffer
	if tr.Buffer != nil && *tr.Buffer >= 0 {
		cfg.Buffer = time.Duration(*tr.Buffer) * time.Second
	}
	return cfg, true
}
