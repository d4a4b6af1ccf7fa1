// Package sessions holds the server-side credential state of an authenticated
// user. Tokens stored here never leave the server except the access token
// returned by a refresh.
package sessions

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Session is the per-user credential record. Only the login exchange and the
// token refresh service write AccessToken and RefreshToken.
type Session struct {
	ID           string    `json:"id"`
	Subject      string    `json:"sub,omitempty"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store persists sessions keyed by id.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
