package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"embedauth/pkg/problems"
	"embedauth/pkg/sessions"
)

type ctxSessionKey struct{}

// WithSession resolves the host session from its cookie and stores it in the
// request context. Requests without a cookie, or with an unknown id, pass
// through unauthenticated; handlers decide whether that is an error.
func WithSession(store sessions.Store, cookie string, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cookie)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := store.Get(r.Context(), c.Value)
			switch {
			case errors.Is(err, sessions.ErrNotFound):
				next.ServeHTTP(w, r)
				return
			case err != nil:
				log.Errorw("session lookup", "err", err, "reqid", RequestIDFrom(r.Context()))
				problems.Write(w, problems.Wrap(problems.Internal, "session lookup failed", err))
				return
			}
			ctx := context.WithValue(r.Context(), ctxSessionKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom returns the request's session, or nil when unauthenticated.
func SessionFrom(ctx context.Context) *sessions.Session {
	if v, ok := ctx.Value(ctxSessionKey{}).(*sessions.Session); ok {
		return v
	}
	return nil
}

// ContextWithSession is used by tests and by in-process callers that already
// hold a session.
func ContextWithSession(ctx context.Context, s *sessions.Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey{}, s)
}
