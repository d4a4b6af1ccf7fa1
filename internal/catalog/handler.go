// Package catalog exposes what the plugin registry knows to the host page:
// which plugins exist and which can have their user token refreshed.
package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"embedauth/internal/refresh"
	"embedauth/pkg/openapi"
	"embedauth/pkg/plugins"
)

// Source is the read side of the plugin registry.
type Source interface {
	Where(pred func(plugins.Manifest) bool) []plugins.Manifest
	BySlug(slug string) (plugins.Manifest, bool)
	OIDCConfig(slug string) (plugins.ResolvedConfig, bool)
	Version() uint64
}

// Plugin is the public view of a manifest. Credentials and provider
// endpoints stay server-side.
type Plugin struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	TokenRefresh  bool   `json:"tokenRefresh"`
	BufferSeconds int    `json:"buffer,omitempty"`
}

func view(src Source, m plugins.Manifest) Plugin {
	p := Plugin{Slug: m.Slug, Name: m.Name, Description: m.Description}
	if cfg, ok := src.OIDCConfig(m.Slug); ok {
		p.TokenRefresh = true
		p.BufferSeconds = int(cfg.Buffer.Seconds())
	}
	return p
}

// RegisterRoutes mounts GET /api/plugins and GET /.well-known/openapi.json.
// ?refresh=1 limits the listing to plugins with a usable refresh configuration.
func RegisterRoutes(r chi.Router, src Source, sessionCookie string) {
	r.Get("/api/plugins", func(w http.ResponseWriter, req *http.Request) {
		var pred func(plugins.Manifest) bool
		if only, _ := strconv.ParseBool(req.URL.Query().Get("refresh")); only {
			pred = func(m plugins.Manifest) bool {
				_, ok := src.OIDCConfig(m.Slug)
				return ok
			}
		}
		out := []Plugin{}
		for _, m := range src.Where(pred) {
			out = append(out, view(src, m))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"version": src.Version(), "plugins": out})
	})
	r.Get("/api/plugins/{slug}", func(w http.ResponseWriter, req *http.Request) {
		m, ok := src.BySlug(chi.URLParam(req, "slug"))
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "plugin not found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view(src, m))
	})
	r.Get("/.well-known/openapi.json", Document(sessionCookie).ServeHandler("embedauth", "v1"))
}

// Document describes the service's public endpoints.
func Document(sessionCookie string) *openapi.Registry {
	errBody := map[string]any{"description": "error", "content": map[string]any{
		"application/json": map[string]any{"schema": map[string]any{
			"type": "object", "properties": map[string]any{"error": map[string]any{"type": "string"}},
		}},
	}}
	doc := openapi.NewRegistry(sessionCookie)
	doc.Register(openapi.Operation{
		Method:  http.MethodPost,
		Path:    refresh.Path,
		Summary: "Refresh the current user's access token for a plugin",
		Tags:    []string{"tokens"},
		Session: true,
		RequestBody: map[string]any{"required": true, "content": map[string]any{
			"application/json": map[string]any{"schema": map[string]any{
				"type": "object", "required": []string{"pluginId"},
				"properties": map[string]any{"pluginId": map[string]any{"type": "string"}},
			}},
		}},
		Responses: map[string]any{
			"200": map[string]any{"description": "new access token", "content": map[string]any{
				"application/json": map[string]any{"schema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"accessToken": map[string]any{"type": "string"},
						"expiresAt":   map[string]any{"type": "integer", "description": "unix seconds"},
						"payload":     map[string]any{"type": "object"},
					},
				}},
			}},
			"400": errBody,
			"401": errBody,
			"500": errBody,
		},
	})
	doc.Register(openapi.Operation{
		Method:    http.MethodGet,
		Path:      "/api/plugins",
		Summary:   "List registered plugins",
		Tags:      []string{"plugins"},
		Responses: map[string]any{"200": map[string]any{"description": "plugin list"}},
	})
	return doc
}
