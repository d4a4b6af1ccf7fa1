package problems

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind classifies a failure surfaced at the refresh boundary.
type Kind int

const (
	Internal Kind = iota
	Unauthenticated
	BadRequest
	UpstreamRefreshFailed
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case BadRequest:
		return "bad_request"
	case UpstreamRefreshFailed:
		return "upstream_refresh_failed"
	default:
		return "internal"
	}
}

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case Unauthenticated, UpstreamRefreshFailed:
		return http.StatusUnauthorized
	case BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Message is safe to show to the browser;
// Err holds the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Message: msg, Err: err} }

// KindOf returns the kind of err, Internal for unclassified errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Internal
}

// Write renders err as {"error": "..."} with the mapped status. Internal
// failures never carry detail in the body.
func Write(w http.ResponseWriter, err error) {
	var pe *Error
	if !errors.As(err, &pe) {
		pe = &Error{Kind: Internal}
	}
	msg := pe.Message
	if pe.Kind == Internal || msg == "" {
		msg = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(pe.Kind.Status())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
