// Package session owns the console's authenticated session: the token pair,
// the user's authorities and the state machine that moves between anonymous,
// pending validation, authenticated and invalid.
package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// RolePrefix is stripped from authority strings to produce role names.
const RolePrefix = "ROLE_"

var (
	// ErrNoRefreshToken is returned by Refresh when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrInvalidSession is returned by Restore when the stored token is rejected.
	ErrInvalidSession = errors.New("stored session is invalid")
	// ErrNotAuthenticated is returned by operations that need an active session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// State is a position in the session state machine.
type State int

const (
	StateAnonymous State = iota
	StatePendingValidation
	StateAuthenticated
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StatePendingValidation:
		return "pending_validation"
	case StateAuthenticated:
		return "authenticated"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// UserInfo describes the logged-in user as reported by the auth server.
type UserInfo struct {
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
	Enabled     bool     `json:"enabled"`
}

// Roles returns the authorities carrying RolePrefix, with the prefix removed.
func (u UserInfo) Roles() []string {
	roles := make([]string, 0, len(u.Authorities))
	for _, a := range u.Authorities {
		if role, ok := strings.CutPrefix(a, RolePrefix); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// HasAuthority reports whether the exact authority string is present.
func (u UserInfo) HasAuthority(authority string) bool {
	for _, a := range u.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// Record is everything persisted about a session. It is always written as a
// whole so the token pair and user info cannot drift apart.
type Record struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
	User         UserInfo  `json:"user"`
}

// Store persists the session record.
type Store interface {
	// Load returns the stored record, or nil when none exists.
	Load(ctx context.Context) (*Record, error)
	// Save replaces the stored record atomically.
	Save(ctx context.Context, rec Record) error
	// Clear removes the stored record. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Credentials are exchanged for a token pair on login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is the auth server's login and refresh payload.
type AuthResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int64    `json:"expiresIn"`
	Username     string   `json:"username"`
	Authorities  []string `json:"authorities"`
}

// Snapshot is the observable view of the session published to subscribers.
type Snapshot struct {
	State         State
	Authenticated bool
	Roles         []string
	User          *UserInfo
}
