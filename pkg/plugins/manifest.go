package plugins

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// HostSentinel is the manifest value selecting the host application's own provider.
const HostSentinel = "host"

// Manifest describes one embeddable form plugin. Manifests handed out by the
// Registry are shared snapshot values and must be treated as read-only.
type Manifest struct {
	Slug        string `json:"slug" yaml:"slug"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	// Service credential for fetching the embedded form itself; not used for user token refresh.
	FormID string `json:"formId" yaml:"formId"`
	APIKey string `json:"apiKey" yaml:"apiKey"`

	// Absent means user token refresh is disabled for this plugin.
	TokenRefresh *TokenRefresh `json:"tokenRefresh,omitempty" yaml:"tokenRefresh,omitempty"`

	// Where the manifest came from (file path, or "static").
	Location string `json:"-" yaml:"-"`
}

// TokenRefresh is the optional refresh block of a manifest.
type TokenRefresh struct {
	OIDC   OIDCRef
	Buffer *int // seconds of lead time before expiry
}

// OIDCRef selects the provider a plugin refreshes against. It is either
// UseHostProvider, CustomProvider, or an invalid value that never resolves.
type OIDCRef interface {
	isOIDCRef()
}

// UseHostProvider defers to the host application's configured provider.
type UseHostProvider struct{}

// CustomProvider names a plugin-specific public OIDC client.
type CustomProvider struct {
	TokenEndpoint string `json:"tokenEndpoint" yaml:"tokenEndpoint"`
	ClientID      string `json:"clientId" yaml:"clientId"`
}

// invalidProvider stands in for an oidc value that could not be decoded. The
// manifest stays registered; its refresh configuration never resolves.
type invalidProvider struct {
	reason string
}

func (UseHostProvider) isOIDCRef() {}
func (CustomProvider) isOIDCRef()  {}
func (invalidProvider) isOIDCRef() {}

// InvalidRefreshReason reports why the refresh block of m could not be
// decoded, or "" when it decoded cleanly or is absent.
func InvalidRefreshReason(m Manifest) string {
	if m.TokenRefresh == nil {
		return ""
	}
	if ref, ok := m.TokenRefresh.OIDC.(invalidProvider); ok {
		return ref.reason
	}
	return ""
}

// UnmarshalJSON never fails: a malformed block is kept as an invalid provider
// so the rest of the manifest still loads.
func (t *TokenRefresh) UnmarshalJSON(b []byte) error {
	t.OIDC, t.Buffer = nil, nil
	var raw struct {
		OIDC   json.RawMessage `json:"oidc"`
		Buffer json.RawMessage `json:"buffer"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.OIDC = invalidProvider{reason: fmt.Sprintf("tokenRefresh: %v", err)}
		return nil
	}
	if len(raw.Buffer) > 0 && string(raw.Buffer) != "null" {
		var buf int
		if err := json.Unmarshal(raw.Buffer, &buf); err != nil {
			t.OIDC = invalidProvider{reason: fmt.Sprintf("tokenRefresh.buffer: %v", err)}
			return nil
		}
		t.Buffer = &buf
	}
	if len(raw.OIDC) == 0 || string(raw.OIDC) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.OIDC, &s); err == nil {
		t.OIDC = sentinelRef(s)
		return nil
	}
	var cp CustomProvider
	if err := json.Unmarshal(raw.OIDC, &cp); err != nil {
		t.OIDC = invalidProvider{reason: fmt.Sprintf("tokenRefresh.oidc: %v", err)}
		return nil
	}
	t.OIDC = cp
	return nil
}

// UnmarshalYAML follows UnmarshalJSON: decoding problems inside the block
// become an invalid provider instead of an error.
func (t *TokenRefresh) UnmarshalYAML(n *yaml.Node) error {
	t.OIDC, t.Buffer = nil, nil
	var raw struct {
		OIDC   yaml.Node `yaml:"oidc"`
		Buffer yaml.Node `yaml:"buffer"`
	}
	if err := n.Decode(&raw); err != nil {
		t.OIDC = invalidProvider{reason: fmt.Sprintf("tokenRefresh: line %d: %v", n.Line, err)}
		return nil
	}
	if raw.Buffer.Kind != 0 && raw.Buffer.Tag != "!!null" {
		var buf int
		if err := raw.Buffer.Decode(&buf); err != nil {
			t.OIDC = invalidProvider{reason: fmt.Sprintf("tokenRefresh.buffer: %v", err)}
			return nil
		}
		t.Buffer = &buf
	}
	switch raw.OIDC.Kind {
	case 0:
	case yaml.ScalarNode:
		if raw.OIDC.Tag != "!!null" {
			t.OIDC = sentinelRef(raw.OIDC.Value)
		}
	case yaml.MappingNode:
		var cp CustomProvider
		if err := raw.OIDC.Decode(&cp); err != nil {
			t.OIDC = invalidProvider{reason: fmt.Sprintf("tokenRefresh.oidc: %v", err)}
			return nil
		}
		t.OIDC = cp
	default:
		t.OIDC = invalidProvider{reason: fmt.Sprintf("tokenRefresh.oidc: line %d: expected %q or a mapping", raw.OIDC.Line, HostSentinel)}
	}
	return nil
}

func sentinelRef(s string) OIDCRef {
	if strings.TrimSpace(s) == HostSentinel {
		return UseHostProvider{}
	}
	return invalidProvider{reason: fmt.Sprintf("tokenRefresh.oidc: unknown provider reference %q", s)}
}

// HasTokenRefresh reports whether m declares a usable refresh configuration.
// It does not consult the host configuration.
func HasTokenRefresh(m Manifest) bool {
	if m.TokenRefresh == nil {
		return false
	}
	switch ref := m.TokenRefresh.OIDC.(type) {
	case UseHostProvider:
		return true
	case CustomProvider:
		return strings.TrimSpace(ref.TokenEndpoint) != "" && strings.TrimSpace(ref.ClientID) != ""
	default:
		return false
	}
}
