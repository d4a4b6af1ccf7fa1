package plugins

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type snapshot struct {
	version  uint64
	loadedAt time.Time
	bySlug   map[string]Manifest
}

// Registry holds the plugin manifests keyed by slug. Each Load builds a new
// snapshot and swaps it in atomically; readers never see a partial reload.
type Registry struct {
	log  *zap.SugaredLogger
	host HostProvider

	loadMu sync.Mutex
	cur    atomic.Pointer[snapshot]
}

func NewRegistry(log *zap.SugaredLogger, host HostProvider) *Registry {
	r := &Registry{log: log, host: host}
	r.cur.Store(&snapshot{bySlug: map[string]Manifest{}})
	return r
}

// Load replaces the registry contents with what l produces. Entries that fail
// to decode or lack a slug are logged and skipped; a malformed refresh block
// only disables refresh for that plugin. It returns the new snapshot version and entry count.
func (r *Registry) Load(ctx context.Context, l Loader) (version uint64, count int) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	manifests, errs := l.Load(ctx)
	for _, err := range errs {
		if errors.Is(err, ErrSourceUnreadable) {
			r.log.Errorw("plugin load", "err", err)
		} else {
			r.log.Warnw("plugin skipped", "err", err)
		}
	}

	next := make(map[string]Manifest, len(manifests))
	for _, m := range manifests {
		slug := strings.TrimSpace(m.Slug)
		if slug == "" {
			r.log.Warnw("plugin skipped", "location", m.Location, "err", "missing slug")
			continue
		}
		m.Slug = slug
		if reason := InvalidRefreshReason(m); reason != "" {
			r.log.Warnw("plugin refresh config invalid", "slug", slug, "location", m.Location, "err", reason)
		}
		if prev, dup := next[slug]; dup {
			r.log.Warnw("duplicate plugin slug", "slug", slug, "replaced", prev.Location, "by", m.Location)
		}
		next[slug] = m
	}

	prev := r.cur.Load()
	snap := &snapshot{version: prev.version + 1, loadedAt: time.Now(), bySlug: next}
	r.cur.Store(snap)
	r.log.Infow("plugins loaded", "count", len(next), "version", snap.version)
	return snap.version, len(next)
}

// Version is 0 until the first Load.
func (r *Registry) Version() uint64 { return r.cur.Load().version }

// All returns every manifest, sorted by slug.
func (r *Registry) All() []Manifest {
	return r.Where(nil)
}

// Where returns the manifests matching pred (all when pred is nil), sorted by slug.
func (r *Registry) Where(pred func(Manifest) bool) []Manifest {
	snap := r.cur.Load()
	out := make([]Manifest, 0, len(snap.bySlug))
	for _, m := range snap.bySlug {
		if pred == nil || pred(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

func (r *Registry) BySlug(slug string) (Manifest, bool) {
	m, ok := r.cur.Load().bySlug[strings.TrimSpace(slug)]
	return m, ok
}

// OIDCConfig resolves the refresh configuration for a plugin. Unknown plugins
// and missing or malformed refresh blocks both report ok=false.
func (r *Registry) OIDCConfig(slug string) (ResolvedConfig, bool) {
	m, ok := r.BySlug(slug)
	if !ok {
		return ResolvedConfig{}, false
	}
	return Resolve(m, r.host)
}
