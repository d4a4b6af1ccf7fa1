// Package tokens reads bearer token payloads without verifying them.
//
// Nothing decoded here may feed an authorization decision: no signature is
// checked. Expiry and claims are scheduling and display hints only; the
// resource servers that receive the token do their own verification.
package tokens

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var ErrNoExpiry = errors.New("token has no exp claim")

// Payload is the unverified content of a JWT access token.
type Payload struct {
	Claims    map[string]any
	ExpiresAt time.Time // zero when the token carries no exp
}

// Decode parses raw as a compact JWS and returns its payload.
func Decode(raw string) (Payload, error) {
	msg, err := jws.Parse([]byte(raw))
	if err != nil {
		return Payload{}, fmt.Errorf("parse token: %w", err)
	}
	claims := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(msg.Payload()))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	jt, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return Payload{}, fmt.Errorf("parse claims: %w", err)
	}
	return Payload{Claims: claims, ExpiresAt: jt.Expiration()}, nil
}

// Expiry returns the exp claim of raw as unix seconds.
func Expiry(raw string) (int64, error) {
	p, err := Decode(raw)
	if err != nil {
		return 0, err
	}
	if p.ExpiresAt.IsZero() {
		return 0, ErrNoExpiry
	}
	return p.ExpiresAt.Unix(), nil
}
