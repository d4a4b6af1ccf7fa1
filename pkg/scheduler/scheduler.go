// Package scheduler keeps an embedded form viewer supplied with a fresh user
// token. It listens for the viewer's expiry warning, asks the refresh
// endpoint for a new access token on behalf of one plugin and pushes the
// result back into the viewer.
//
// The scheduler never sees a refresh token. The refresh endpoint is
// authenticated by the host session cookie carried in the HTTP client's jar.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"embedauth/pkg/tokens"
)

// Events emitted by the viewer.
const (
	EventTokenExpiring  = "formio:userTokenExpiring"
	EventTokenRefreshed = "formio:userTokenRefreshed"
)

const defaultTimeout = 15 * time.Second

var (
	ErrNoPluginID = errors.New("scheduler: plugin id required")
	ErrNoViewer   = errors.New("scheduler: viewer required")
)

// Event is the payload of EventTokenExpiring.
type Event struct {
	ExpiresAt int64 `json:"expiresAt"`
	Expired   bool  `json:"expired"`
}

// TokenUpdate is pushed into the viewer. ExpiresAt may be nil; the viewer
// then reads the exp claim of Token itself.
type TokenUpdate struct {
	Token     string `json:"token"`
	ExpiresAt *int64 `json:"expiresAt,omitempty"`
	Buffer    *int   `json:"buffer,omitempty"`
}

// Viewer is the public contract of the embedded form component.
type Viewer interface {
	// On registers h for event and returns a func removing it.
	On(event string, h func(Event)) (remove func())
	SetUserToken(TokenUpdate) error
}

// Result is a successful refresh as returned by the refresh endpoint.
type Result struct {
	AccessToken string         `json:"accessToken"`
	ExpiresAt   int64          `json:"expiresAt"`
	Payload     map[string]any `json:"payload"`
}

type Options struct {
	Viewer       Viewer
	Endpoint     string // absolute URL of the refresh endpoint
	PluginID     string
	Buffer       int    // seconds; 0 leaves the viewer default
	InitialToken string // seeds the viewer's own expiry timer on Bind

	// HTTPClient must carry the host session cookie (usually via its Jar).
	HTTPClient *http.Client
	Timeout    time.Duration

	OnRefreshed func(Result)
	OnError     func(reason string)
	Logger      *zap.SugaredLogger
}

// Scheduler is bound to one viewer instance and one plugin.
type Scheduler struct {
	opts Options
	log  *zap.SugaredLogger

	mu     sync.Mutex // guards remove and transitions of bound
	bound  atomic.Bool
	remove func()

	// one notification is handled to completion before the next
	handling   sync.Mutex
	lastExpiry atomic.Int64
}

func New(opts Options) *Scheduler {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{opts: opts, log: log}
}

// Bind starts listening for expiry warnings. It is a no-op when already
// bound. Without a plugin id it refuses to bind: refresh never falls back to
// an unscoped provider.
func (s *Scheduler) Bind() error {
	s.mu.Lock()
	if s.bound.Load() {
		s.mu.Unlock()
		return nil
	}
	if strings.TrimSpace(s.opts.PluginID) == "" {
		s.mu.Unlock()
		s.log.Errorw("token refresh not bound", "err", ErrNoPluginID)
		return ErrNoPluginID
	}
	if s.opts.Viewer == nil {
		s.mu.Unlock()
		s.log.Errorw("token refresh not bound", "plugin", s.opts.PluginID, "err", ErrNoViewer)
		return ErrNoViewer
	}
	s.bound.Store(true)
	s.remove = s.opts.Viewer.On(EventTokenExpiring, s.handle)
	s.mu.Unlock()

	// The viewer may emit synchronously from SetUserToken, e.g. for an
	// already expired seed, so no lock is held here.
	if tok := s.opts.InitialToken; tok != "" {
		if exp, err := tokens.Expiry(tok); err == nil {
			s.lastExpiry.Store(exp)
		}
		if err := s.opts.Viewer.SetUserToken(TokenUpdate{Token: tok, Buffer: s.buffer()}); err != nil {
			s.log.Warnw("seed viewer token", "plugin", s.opts.PluginID, "err", err)
		}
	}
	return nil
}

// Unbind stops listening. A refresh already in flight still completes.
func (s *Scheduler) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bound.Load() {
		return
	}
	if s.remove != nil {
		s.remove()
	}
	s.remove = nil
	s.bound.Store(false)
}

func (s *Scheduler) Bound() bool { return s.bound.Load() }

// LastExpiry is the most recent known expiry of the viewer's token, unix seconds.
func (s *Scheduler) LastExpiry() int64 { return s.lastExpiry.Load() }

func (s *Scheduler) buffer() *int {
	if s.opts.Buffer <= 0 {
		return nil
	}
	b := s.opts.Buffer
	return &b
}

func (s *Scheduler) handle(ev Event) {
	s.handling.Lock()
	defer s.handling.Unlock()
	if !s.bound.Load() {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Errorw("token refresh handler panic", "plugin", s.opts.PluginID, "err", rec)
		}
	}()

	if ev.ExpiresAt > 0 {
		s.lastExpiry.Store(ev.ExpiresAt)
	}
	if ev.Expired {
		s.fail("token already expired")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()
	res, err := s.refresh(ctx)
	if err != nil {
		s.fail(err.Error())
		return
	}
	exp := res.ExpiresAt
	if err := s.opts.Viewer.SetUserToken(TokenUpdate{Token: res.AccessToken, ExpiresAt: &exp, Buffer: s.buffer()}); err != nil {
		s.fail("viewer rejected token: " + err.Error())
		return
	}
	s.lastExpiry.Store(exp)
	s.log.Debugw("user token refreshed", "plugin", s.opts.PluginID, "expiresAt", exp)
	if cb := s.opts.OnRefreshed; cb != nil {
		s.safe(func() { cb(res) })
	}
}

func (s *Scheduler) refresh(ctx context.Context) (Result, error) {
	body, _ := json.Marshal(map[string]string{"pluginId": s.opts.PluginID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return Result{}, fmt.Errorf("refresh failed (%d): %s", resp.StatusCode, e.Error)
		}
		return Result{}, fmt.Errorf("refresh failed (%d)", resp.StatusCode)
	}
	var res Result
	if err := json.Unmarshal(b, &res); err != nil {
		return Result{}, fmt.Errorf("malformed refresh response: %w", err)
	}
	if res.AccessToken == "" {
		return Result{}, errors.New("malformed refresh response: missing accessToken")
	}
	return res, nil
}

func (s *Scheduler) fail(reason string) {
	s.log.Warnw("user token refresh failed", "plugin", s.opts.PluginID, "reason", reason)
	if cb := s.opts.OnError; cb != nil {
		s.safe(func() { cb(reason) })
	}
}

func (s *Scheduler) safe(f func()) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Errorw("token refresh callback panic", "plugin", s.opts.PluginID, "err", rec)
		}
	}()
	f()
}
