package plugins

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTokenRefresh_DecodeYAML(t *testing.T) {
	t.Run("host sentinel", func(t *testing.T) {
		var m Manifest
		require.NoError(t, yaml.Unmarshal([]byte("slug: a\ntokenRefresh:\n  oidc: host\n  buffer: 30\n"), &m))
		require.NotNil(t, m.TokenRefresh)
		assert.Equal(t, UseHostProvider{}, m.TokenRefresh.OIDC)
		require.NotNil(t, m.TokenRefresh.Buffer)
		assert.Equal(t, 30, *m.TokenRefresh.Buffer)
	})

	t.Run("custom provider", func(t *testing.T) {
		var m Manifest
		src := "slug: demo\ntokenRefresh:\n  oidc:\n    tokenEndpoint: https://idp.example/token\n    clientId: pub\n"
		require.NoError(t, yaml.Unmarshal([]byte(src), &m))
		assert.Equal(t, CustomProvider{TokenEndpoint: "https://idp.example/token", ClientID: "pub"}, m.TokenRefresh.OIDC)
		assert.Nil(t, m.TokenRefresh.Buffer)
	})

	t.Run("block without oidc", func(t *testing.T) {
		var m Manifest
		require.NoError(t, yaml.Unmarshal([]byte("slug: a\ntokenRefresh:\n  buffer: 10\n"), &m))
		require.NotNil(t, m.TokenRefresh)
		assert.Nil(t, m.TokenRefresh.OIDC)
	})

	t.Run("unknown sentinel keeps the manifest", func(t *testing.T) {
		var m Manifest
		require.NoError(t, yaml.Unmarshal([]byte("slug: a\nname: A\ntokenRefresh:\n  oidc: google\n"), &m))
		assert.Equal(t, "A", m.Name)
		assert.Contains(t, InvalidRefreshReason(m), "unknown provider reference")
		assert.False(t, HasTokenRefresh(m))
	})

	t.Run("sequence keeps the manifest", func(t *testing.T) {
		var m Manifest
		require.NoError(t, yaml.Unmarshal([]byte("slug: a\ntokenRefresh:\n  oidc: [a, b]\n"), &m))
		assert.NotEmpty(t, InvalidRefreshReason(m))
		assert.False(t, HasTokenRefresh(m))
	})

	t.Run("bad buffer", func(t *testing.T) {
		var m Manifest
		require.NoError(t, yaml.Unmarshal([]byte("slug: a\ntokenRefresh:\n  oidc: host\n  buffer: soon\n"), &m))
		assert.Contains(t, InvalidRefreshReason(m), "buffer")
	})
}

func TestTokenRefresh_DecodeJSON(t *testing.T) {
	t.Run("host sentinel", func(t *testing.T) {
		var m Manifest
		require.NoError(t, json.Unmarshal([]byte(`{"slug":"a","tokenRefresh":{"oidc":"host"}}`), &m))
		assert.Equal(t, UseHostProvider{}, m.TokenRefresh.OIDC)
	})

	t.Run("custom provider", func(t *testing.T) {
		var m Manifest
		require.NoError(t, json.Unmarshal([]byte(`{"slug":"a","tokenRefresh":{"oidc":{"tokenEndpoint":"https://x/token","clientId":"c"},"buffer":5}}`), &m))
		assert.Equal(t, CustomProvider{TokenEndpoint: "https://x/token", ClientID: "c"}, m.TokenRefresh.OIDC)
		assert.Equal(t, 5, *m.TokenRefresh.Buffer)
	})

	t.Run("null oidc", func(t *testing.T) {
		var m Manifest
		require.NoError(t, json.Unmarshal([]byte(`{"slug":"a","tokenRefresh":{"oidc":null}}`), &m))
		assert.Nil(t, m.TokenRefresh.OIDC)
	})

	t.Run("absent block", func(t *testing.T) {
		var m Manifest
		require.NoError(t, json.Unmarshal([]byte(`{"slug":"a"}`), &m))
		assert.Nil(t, m.TokenRefresh)
	})

	t.Run("malformed values keep the manifest", func(t *testing.T) {
		for _, src := range []string{
			`{"slug":"a","tokenRefresh":{"oidc":42}}`,
			`{"slug":"a","tokenRefresh":{"oidc":"keycloak"}}`,
			`{"slug":"a","tokenRefresh":{"oidc":{"tokenEndpoint":"https://x/token","clientId":7}}}`,
			`{"slug":"a","tokenRefresh":"yes"}`,
		} {
			var m Manifest
			require.NoError(t, json.Unmarshal([]byte(src), &m), src)
			assert.Equal(t, "a", m.Slug, src)
			assert.NotEmpty(t, InvalidRefreshReason(m), src)
			assert.False(t, HasTokenRefresh(m), src)
		}
	})
}

func TestHasTokenRefresh(t *testing.T) {
	tests := []struct {
		name string
		tr   *TokenRefresh
		want bool
	}{
		{"absent", nil, false},
		{"no oidc", &TokenRefresh{}, false},
		{"host", &TokenRefresh{OIDC: UseHostProvider{}}, true},
		{"custom complete", &TokenRefresh{OIDC: CustomProvider{TokenEndpoint: "https://x/token", ClientID: "c"}}, true},
		{"custom missing client", &TokenRefresh{OIDC: CustomProvider{TokenEndpoint: "https://x/token"}}, false},
		{"custom missing endpoint", &TokenRefresh{OIDC: CustomProvider{ClientID: "c"}}, false},
		{"custom blank client", &TokenRefresh{OIDC: CustomProvider{TokenEndpoint: "https://x/token", ClientID: "  "}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HasTokenRefresh(Manifest{Slug: "p", TokenRefresh: tc.tr}))
		})
	}
}
