// Package sessions issues and validates per-browser login sessions. Session
// records live in Redis under a random ID with a fixed TTL; the browser holds
// a signed handle (an HS256 JWT whose jti is that ID) in an HttpOnly cookie.
// The Redis record is authoritative: a well-signed handle whose record is
// gone is not a session.
package sessions

import (
	"errors"
	"time"
)

// ErrNoSession means the handle is missing, malformed, badly signed, expired,
// or points at a record that no longer exists. Callers treat the request as
// anonymous.
var ErrNoSession = errors.New("no valid session")

// errCorruptSession is returned by a Store when a record exists but cannot
// be decoded.
var errCorruptSession = errors.New("corrupt session record")

// Session is the server-side record for one authenticated browser.
type Session struct {
	// ID is the store key. It is carried in the handle, not in the record.
	ID string `json:"-"`

	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpiresAt returns when the session lapses for the given TTL.
func (s *Session) ExpiresAt(ttl time.Duration) time.Time {
	return s.CreatedAt.Add(ttl)
}
