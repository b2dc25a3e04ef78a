// Package session adapts the external identity provider. The core only
// ever sees an opaque user id and an authenticated flag.
package session

import (
	"context"
	"fmt"

	"github.com/Aidan3445/castaway/internal/fault"
)

// Session is the caller's identity for one request.
type Session struct {
	UserID        string
	Authenticated bool
}

// Provider yields the current session. Implementations wrap whatever the
// identity service actually is.
type Provider interface {
	Current(ctx context.Context) (Session, error)
}

// Static is a fixed-session provider for tools and tests.
type Static struct {
	Session Session
}

// Current returns the fixed session.
func (s Static) Current(context.Context) (Session, error) {
	return s.Session, nil
}

// Require returns the session only when authenticated; otherwise it
// reports ErrAuthRequired for the top-level redirect.
func Require(ctx context.Context, p Provider) (Session, error) {
	sess, err := p.Current(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("session read: %w", err)
	}
	if !sess.Authenticated || sess.UserID == "" {
		return Session{}, fault.ErrAuthRequired
	}
	return sess, nil
}
