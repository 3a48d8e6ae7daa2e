package fmid

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oskarih/fmcloud-go/internal/sessionfile"
)

// Scheme is the authorization scheme for FMID identity tokens.
const Scheme = "FMID"

// acquireKey is the single singleflight key: at most one acquisition
// sequence runs per manager, and every concurrent caller joins it.
const acquireKey = "acquire"

// Provider drives the two identity-provider operations. The manager
// never runs two provider calls concurrently, so implementations need
// no internal synchronization on its behalf.
type Provider interface {
	Authenticate(ctx context.Context, username, password string) (*Session, error)
	Refresh(ctx context.Context, session *Session) (*Session, error)
}

// TokenManager owns the cached session for one set of credentials and
// exposes a single operation: AuthorizationHeader. Acquisition follows
// a fixed sequence: reuse the cached session while its identity token
// is unexpired, refresh when it is expired, and fall back to a full
// re-authentication (once, never in a loop) when refresh fails.
type TokenManager struct {
	provider    Provider
	username    string
	password    string
	sessionPath string
	logger      *slog.Logger

	// now is a test seam; defaults to time.Now.
	now func() time.Time

	flight singleflight.Group

	mu      sync.Mutex
	session *Session
}

// NewTokenManager creates a token manager for the given credentials.
// sessionPath is optional: when non-empty, a previously saved session
// is loaded from it and every new session is persisted back to it.
// A nil logger falls back to slog.Default().
func NewTokenManager(provider Provider, username, password, sessionPath string, logger *slog.Logger) *TokenManager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &TokenManager{
		provider:    provider,
		username:    username,
		password:    password,
		sessionPath: sessionPath,
		logger:      logger,
		now:         time.Now,
	}

	if sessionPath != "" {
		m.loadSession()
	}

	return m
}

// AuthorizationHeader returns a ready-to-use Authorization header value
// of the form "FMID <identity-token>", acquiring or refreshing the
// session as needed. Concurrent callers share one underlying
// acquisition; the in-flight call is cleared the moment it settles,
// success or failure, so a later call always starts fresh.
func (m *TokenManager) AuthorizationHeader(ctx context.Context) (string, error) {
	v, err, _ := m.flight.Do(acquireKey, func() (any, error) {
		return m.acquire(ctx)
	})
	if err != nil {
		return "", err
	}

	return Scheme + " " + v.(string), nil
}

// acquire runs the acquisition state machine. It is only ever executed
// inside the singleflight call, so session mutations cannot interleave.
func (m *TokenManager) acquire(ctx context.Context) (string, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session != nil {
		if !session.identityTokenExpired(m.now()) {
			m.logger.Debug("reusing cached session")

			return session.IdentityToken, nil
		}

		m.logger.Debug("identity token expired, refreshing session")

		refreshed, err := m.provider.Refresh(ctx, session)
		if err == nil {
			m.storeSession(refreshed)

			return refreshed.IdentityToken, nil
		}

		// Refresh failure is recoverable exactly once: discard the
		// session and re-authenticate with the original credentials.
		m.logger.Warn("session refresh failed, re-authenticating",
			slog.String("error", err.Error()),
		)

		m.mu.Lock()
		m.session = nil
		m.mu.Unlock()
	}

	fresh, err := m.provider.Authenticate(ctx, m.username, m.password)
	if err != nil {
		m.logger.Warn("authentication failed", slog.String("error", err.Error()))

		// Propagated unchanged; the caller decides whether to re-prompt.
		return "", err
	}

	m.storeSession(fresh)
	m.logger.Info("authenticated", slog.String("username", m.username))

	return fresh.IdentityToken, nil
}

// storeSession replaces the cached session and persists it when a
// session path is configured. Persistence is best-effort: a write
// failure is logged, never surfaced, because the acquisition itself
// succeeded.
func (m *TokenManager) storeSession(s *Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	if m.sessionPath == "" {
		return
	}

	err := sessionfile.Save(m.sessionPath, &sessionfile.File{
		AccessToken:   s.AccessToken,
		IdentityToken: s.IdentityToken,
		RefreshToken:  s.RefreshToken,
	})
	if err != nil {
		m.logger.Warn("failed to persist session",
			slog.String("path", m.sessionPath),
			slog.String("error", err.Error()),
		)
	}
}

// loadSession seeds the cache from a previously saved session. A
// corrupt or missing file just means starting without a session.
func (m *TokenManager) loadSession() {
	f, err := sessionfile.Load(m.sessionPath)
	if err != nil {
		m.logger.Warn("ignoring unreadable session file",
			slog.String("path", m.sessionPath),
			slog.String("error", err.Error()),
		)

		return
	}

	if f == nil {
		return
	}

	m.session = &Session{
		AccessToken:   f.AccessToken,
		IdentityToken: f.IdentityToken,
		RefreshToken:  f.RefreshToken,
	}

	m.logger.Debug("loaded saved session", slog.String("path", m.sessionPath))
}
