package refresh

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"embedauth/pkg/plugins"
	"embedauth/pkg/problems"
	"embedauth/pkg/sessions"
	"embedauth/pkg/tokens"
)

const DefaultTimeout = 10 * time.Second

// Resolver yields the refresh configuration for a plugin slug.
type Resolver interface {
	OIDCConfig(slug string) (plugins.ResolvedConfig, bool)
}

// Result is what the browser receives after a successful refresh.
type Result struct {
	AccessToken string         `json:"accessToken"`
	ExpiresAt   int64          `json:"expiresAt"`
	Claims      map[string]any `json:"payload"`
}

type Options struct {
	// Timeout bounds one provider exchange. Defaults to DefaultTimeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    *Metrics
}

// Service exchanges a session's refresh token for a new access token against
// the provider configured for a plugin. It holds no per-request state.
type Service struct {
	resolver Resolver
	store    sessions.Store
	client   *http.Client
	timeout  time.Duration
	metrics  *Metrics
	log      *zap.SugaredLogger
}

func NewService(resolver Resolver, store sessions.Store, log *zap.SugaredLogger, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if client.Timeout == 0 || client.Timeout > opts.Timeout {
		cp := *client
		cp.Timeout = opts.Timeout
		client = &cp
	}
	return &Service{
		resolver: resolver,
		store:    store,
		client:   client,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
		log:      log,
	}
}

// Refresh renews the access token of sess for pluginID and persists the
// result, including a rotated refresh token. sess is updated in place on
// success. Every call may rotate the refresh token, so it is not idempotent.
func (s *Service) Refresh(ctx context.Context, pluginID string, sess *sessions.Session) (res Result, err error) {
	start := time.Now()
	label := "unknown"
	defer func() { s.metrics.observe(label, err, time.Since(start)) }()

	if sess == nil {
		return Result{}, problems.New(problems.Unauthenticated, "not authenticated")
	}
	pluginID = strings.TrimSpace(pluginID)
	if pluginID == "" {
		return Result{}, problems.New(problems.BadRequest, "missing plugin id")
	}
	cfg, ok := s.resolver.OIDCConfig(pluginID)
	if !ok {
		return Result{}, problems.New(problems.BadRequest, "refresh not configured for plugin")
	}
	label = pluginID
	if sess.RefreshToken == "" {
		return Result{}, problems.New(problems.Unauthenticated, "no refresh token")
	}

	tok, err := s.exchange(ctx, cfg, sess.RefreshToken)
	if err != nil {
		return Result{}, s.classify(pluginID, cfg, err)
	}

	// Persist before decoding: the provider may already have invalidated the
	// old refresh token.
	updated := *sess
	updated.AccessToken = tok.AccessToken
	rotated := tok.RefreshToken != "" && tok.RefreshToken != sess.RefreshToken
	if rotated {
		updated.RefreshToken = tok.RefreshToken
	}
	updated.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, &updated); err != nil {
		s.log.Errorw("refresh: save session", "plugin", pluginID, "err", err)
		return Result{}, problems.Wrap(problems.Internal, "", err)
	}
	*sess = updated

	payload, err := tokens.Decode(tok.AccessToken)
	if err != nil {
		s.log.Errorw("refresh: decode access token", "plugin", pluginID, "err", err)
		return Result{}, problems.Wrap(problems.Internal, "", err)
	}
	exp := payload.ExpiresAt
	if exp.IsZero() {
		exp = tok.Expiry
	}
	if exp.IsZero() {
		s.log.Errorw("refresh: access token has no expiry", "plugin", pluginID)
		return Result{}, problems.Wrap(problems.Internal, "", tokens.ErrNoExpiry)
	}

	s.log.Infow("token refreshed", "plugin", pluginID, "session", sess.ID, "rotated", rotated, "expiresAt", exp.Unix())
	return Result{AccessToken: tok.AccessToken, ExpiresAt: exp.Unix(), Claims: payload.Claims}, nil
}

func (s *Service) exchange(ctx context.Context, cfg plugins.ResolvedConfig, refreshToken string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)

	conf := &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: oauth2.Endpoint{TokenURL: cfg.TokenEndpoint, AuthStyle: oauth2.AuthStyleInParams},
	}
	// An empty access token is never valid, so the source goes straight to the refresh grant.
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

// classify maps an exchange failure. Provider rejections become
// UpstreamRefreshFailed with the body kept in the log only; transport
// failures and timeouts are Internal so the browser may retry instead of
// forcing a new login.
func (s *Service) classify(pluginID string, cfg plugins.ResolvedConfig, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		s.log.Warnw("refresh rejected by provider",
			"plugin", pluginID, "endpoint", cfg.TokenEndpoint, "status", status,
			"error_code", re.ErrorCode, "body", string(re.Body))
		return problems.Wrap(problems.UpstreamRefreshFailed, "token refresh failed", err)
	}
	s.log.Errorw("refresh exchange failed",
		"plugin", pluginID, "endpoint", cfg.TokenEndpoint,
		"timeout", errors.Is(err, context.DeadlineExceeded), "err", err)
	return problems.Wrap(problems.Internal, "", err)
}
