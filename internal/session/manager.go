package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/searchconsole/internal/apierr"
	"github.com/JakeFAU/searchconsole/internal/clock"
	"github.com/JakeFAU/searchconsole/internal/clock/system"
	"github.com/JakeFAU/searchconsole/internal/gateway"
	"github.com/JakeFAU/searchconsole/internal/metrics"
	"github.com/JakeFAU/searchconsole/internal/validation"
)

const (
	pathLogin    = "auth-server/api/auth/login"
	pathLogout   = "auth-server/api/auth/logout"
	pathRefresh  = "auth-server/api/auth/refresh"
	pathValidate = "auth-server/api/auth/validate"
	pathMe       = "auth-server/api/auth/me"

	// refreshTimeout bounds a refresh shared by several callers; it runs
	// detached from any single caller's context.
	refreshTimeout = 30 * time.Second
)

// Config wires a Manager.
type Config struct {
	Client *gateway.Client
	Store  Store
	Clock  clock.Clock
	Logger *zap.Logger
	// RefreshSkew triggers a proactive refresh when the access token expires
	// within this window. Zero disables proactive refresh.
	RefreshSkew time.Duration
}

// Manager is the single owner of session state. It implements
// gateway.TokenSource so the client can attach and refresh tokens.
type Manager struct {
	client *gateway.Client
	store  Store
	clock  clock.Clock
	logger *zap.Logger
	skew   time.Duration

	mu     sync.RWMutex
	state  State
	record *Record
	// epoch changes whenever the session is replaced or ended. Writes that
	// started under an older epoch are dropped.
	epoch uint64
	subs  map[<-chan Snapshot]chan Snapshot

	refreshGroup singleflight.Group
}

// NewManager builds a Manager in the anonymous state. Call Restore to resume
// a stored session.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Client == nil {
		return nil, errors.New("session manager requires a gateway client")
	}
	if cfg.Store == nil {
		return nil, errors.New("session manager requires a store")
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	m := &Manager{
		client: cfg.Client,
		store:  cfg.Store,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		skew:   cfg.RefreshSkew,
		state:  StateAnonymous,
		subs:   make(map[<-chan Snapshot]chan Snapshot),
	}
	cfg.Client.SetTokenSource(m)
	return m, nil
}

// Restore resumes a stored session. A stored record enters pending validation;
// the token is then validated and the user info reloaded. Any failure
// invalidates the session and clears the store.
func (m *Manager) Restore(ctx context.Context) error {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if rec == nil || rec.AccessToken == "" {
		return nil
	}

	m.mu.Lock()
	m.epoch++
	m.record = rec
	m.setStateLocked(StatePendingValidation)
	m.mu.Unlock()

	valid, err := m.Validate(ctx)
	if err != nil || !valid {
		m.logger.Info("stored session rejected", zap.Bool("valid", valid), zap.Error(err))
		m.invalidate(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSession, err)
		}
		return ErrInvalidSession
	}

	if _, err := m.Me(ctx); err != nil {
		m.logger.Warn("failed to load user info", zap.Error(err))
		m.invalidate(ctx)
		return fmt.Errorf("load user info: %w", err)
	}

	m.mu.Lock()
	if m.record != nil && m.state == StatePendingValidation {
		m.setStateLocked(StateAuthenticated)
	}
	m.mu.Unlock()
	return nil
}

// Login exchanges credentials for a token pair and moves straight to
// authenticated.
func (m *Manager) Login(ctx context.Context, creds Credentials) (UserInfo, error) {
	if res := validation.ValidateCredentials(validation.Credentials{
		Username: creds.Username,
		Password: creds.Password,
	}); !res.Valid {
		return UserInfo{}, apierr.Validation(pathLogin, res.Errors, m.clock.Now())
	}

	var resp AuthResponse
	err := m.client.Call(ctx, gateway.Request{
		Method:     http.MethodPost,
		Path:       pathLogin,
		Body:       creds,
		SkipAuth:   true,
		NoRetry:    true,
		NoSanitize: true,
	}, &resp)
	if err != nil {
		m.logger.Info("login failed", zap.String("username", creds.Username), zap.Error(err))
		return UserInfo{}, err
	}

	username := resp.Username
	if username == "" {
		username = creds.Username
	}
	rec := Record{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresAt:    expiresAt(resp, m.clock.Now()),
		User: UserInfo{
			Username:    username,
			Authorities: append([]string(nil), resp.Authorities...),
			Enabled:     true,
		},
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return UserInfo{}, fmt.Errorf("save session: %w", err)
	}

	m.mu.Lock()
	m.epoch++
	m.record = &rec
	m.setStateLocked(StateAuthenticated)
	m.mu.Unlock()

	m.logger.Info("logged in", zap.String("username", username), zap.Strings("roles", rec.User.Roles()))
	return rec.User, nil
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers share
// one round trip, which is not aborted when one of them gives up. Only a
// rejected refresh token clears the session; transient failures keep it.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, m.refresh(rctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("refresh token: %w", ctx.Err())
	}
}

func (m *Manager) refresh(ctx context.Context) error {
	m.mu.RLock()
	var current Record
	if m.record != nil {
		current = *m.record
	}
	epoch := m.epoch
	m.mu.RUnlock()

	if current.RefreshToken == "" {
		m.clear(ctx)
		return ErrNoRefreshToken
	}

	var resp AuthResponse
	err := m.client.Call(ctx, gateway.Request{
		Method:     http.MethodPost,
		Path:       pathRefresh,
		Body:       map[string]string{"refreshToken": current.RefreshToken},
		SkipAuth:   true,
		NoRetry:    true,
		NoSanitize: true,
	}, &resp)
	if err != nil {
		if apierr.Is(err, apierr.KindClient) {
			m.logger.Info("refresh token rejected, clearing session", zap.Error(err))
			m.clear(ctx)
		} else {
			m.logger.Warn("token refresh failed, keeping session", zap.Error(err))
		}
		return fmt.Errorf("refresh token: %w", err)
	}

	next := current
	next.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}
	if resp.TokenType != "" {
		next.TokenType = resp.TokenType
	}
	next.ExpiresAt = expiresAt(resp, m.clock.Now())
	if resp.Username != "" {
		next.User.Username = resp.Username
	}
	if resp.Authorities != nil {
		next.User.Authorities = append([]string(nil), resp.Authorities...)
	}
	return m.replace(ctx, epoch, next)
}

// replace persists next and makes it current, unless the session changed
// since epoch was read. The store write happens under the lock so a
// concurrent logout cannot be undone by a late write.
func (m *Manager) replace(ctx context.Context, epoch uint64, next Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil || m.epoch != epoch {
		return ErrNotAuthenticated
	}
	if err := m.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.record = &next
	m.publishLocked()
	return nil
}

// Logout ends the session. Local state is always cleared; the server error,
// if any, is returned for reporting only.
func (m *Manager) Logout(ctx context.Context) error {
	token := m.AccessToken()
	defer m.clear(ctx)

	if token == "" {
		return nil
	}
	_, err := m.client.Do(ctx, gateway.Request{
		Method:   http.MethodPost,
		Path:     pathLogout,
		Body:     struct{}{},
		Header:   bearer(token),
		SkipAuth: true,
		NoRetry:  true,
	})
	if err != nil {
		m.logger.Warn("server logout failed, cleared local session", zap.Error(err))
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Validate asks the auth server whether the current access token is valid.
func (m *Manager) Validate(ctx context.Context) (bool, error) {
	token := m.AccessToken()
	if token == "" {
		return false, nil
	}
	var out struct {
		Valid bool `json:"valid"`
	}
	err := m.client.Call(ctx, gateway.Request{
		Method:   http.MethodGet,
		Path:     pathValidate,
		Header:   bearer(token),
		SkipAuth: true,
	}, &out)
	if err != nil {
		return false, err
	}
	return out.Valid, nil
}

// Me loads the current user from the auth server and stores it with the tokens.
func (m *Manager) Me(ctx context.Context) (UserInfo, error) {
	token := m.AccessToken()
	if token == "" {
		return UserInfo{}, ErrNotAuthenticated
	}
	var user UserInfo
	err := m.client.Call(ctx, gateway.Request{
		Method:   http.MethodGet,
		Path:     pathMe,
		Header:   bearer(token),
		SkipAuth: true,
	}, &user)
	if err != nil {
		return UserInfo{}, err
	}

	m.mu.RLock()
	if m.record == nil {
		m.mu.RUnlock()
		return UserInfo{}, ErrNotAuthenticated
	}
	next := *m.record
	epoch := m.epoch
	m.mu.RUnlock()

	next.User = user
	if err := m.replace(ctx, epoch, next); err != nil {
		return UserInfo{}, err
	}
	return user, nil
}

// Token implements gateway.TokenSource. A token close to expiry is refreshed
// first when a refresh token is available.
func (m *Manager) Token(ctx context.Context) (string, bool) {
	m.mu.RLock()
	rec, state := m.record, m.state
	m.mu.RUnlock()

	if rec == nil || rec.AccessToken == "" {
		return "", false
	}
	if state != StateAuthenticated && state != StatePendingValidation {
		return "", false
	}
	if m.expiringSoon(rec) && rec.RefreshToken != "" {
		if err := m.Refresh(ctx); err != nil {
			m.logger.Debug("proactive refresh failed", zap.Error(err))
		}
		token := m.AccessToken()
		return token, token != ""
	}
	return rec.AccessToken, true
}

func (m *Manager) expiringSoon(rec *Record) bool {
	if m.skew <= 0 || rec.ExpiresAt.IsZero() {
		return false
	}
	return !m.clock.Now().Add(m.skew).Before(rec.ExpiresAt)
}

// AccessToken returns the stored access token, or "" when there is none.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.record == nil {
		return ""
	}
	return m.record.AccessToken
}

// IsAuthenticated reports whether the session is authenticated and holds a token.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateAuthenticated && m.record != nil && m.record.AccessToken != ""
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns the current user, or nil when there is no session.
func (m *Manager) User() *UserInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.record == nil {
		return nil
	}
	u := m.record.User
	u.Authorities = slices.Clone(u.Authorities)
	return &u
}

// Roles returns the user's role names without the ROLE_ prefix.
func (m *Manager) Roles() []string {
	if u := m.User(); u != nil {
		return u.Roles()
	}
	return []string{}
}

// HasRole reports whether the user holds ROLE_<role>.
func (m *Manager) HasRole(role string) bool {
	u := m.User()
	return u != nil && u.HasAuthority(RolePrefix+role)
}

// IsAdmin reports whether the user holds ROLE_ADMIN.
func (m *Manager) IsAdmin() bool {
	return m.HasRole("ADMIN")
}

// Snapshot returns the current observable state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Subscribe returns a channel that receives the current snapshot and every
// later change. Slow subscribers only see the latest snapshot.
func (m *Manager) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[ch] = ch
	ch <- m.snapshotLocked()
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (m *Manager) Unsubscribe(ch <-chan Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if send, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(send)
	}
}

// Close closes every subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, send := range m.subs {
		delete(m.subs, key)
		close(send)
	}
}

func (m *Manager) invalidate(ctx context.Context) {
	m.mu.Lock()
	m.setStateLocked(StateInvalid)
	m.mu.Unlock()
	m.clear(ctx)
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	// Local state goes even if the store cannot be cleared.
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.logger.Warn("failed to clear stored session", zap.Error(err))
	}
	m.record = nil
	m.setStateLocked(StateAnonymous)
}

func (m *Manager) setStateLocked(s State) {
	changed := m.state != s
	m.state = s
	if changed {
		metrics.ObserveSessionTransition(s.String())
	}
	m.publishLocked()
}

func (m *Manager) publishLocked() {
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         m.state,
		Authenticated: m.state == StateAuthenticated && m.record != nil && m.record.AccessToken != "",
		Roles:         []string{},
	}
	if m.record != nil {
		u := m.record.User
		u.Authorities = slices.Clone(u.Authorities)
		snap.User = &u
		snap.Roles = u.Roles()
	}
	return snap
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
