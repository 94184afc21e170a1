package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Housri/steam-auth-public/internal/auth"
	"github.com/Housri/steam-auth-public/internal/logger"
	"github.com/Housri/steam-auth-public/internal/metrics"
	"github.com/Housri/steam-auth-public/internal/user"
)

// UserFinder is the part of user.Store the manager needs to refresh the
// record behind a session.
type UserFinder interface {
	FindByExternalID(ctx context.Context, externalID string) (*user.Record, error)
}

type Config struct {
	Secret      []byte
	IdleTTL     time.Duration
	AbsoluteTTL time.Duration
}

// Issued is what the client receives after a successful login.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// Manager establishes, resolves and invalidates sessions.
type Manager struct {
	store       Store
	users       UserFinder
	signer      signer
	idleTTL     time.Duration
	absoluteTTL time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time
}

type Option func(*Manager)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(mgr *Manager) { mgr.now = now }
}

func NewManager(store Store, users UserFinder, cfg Config, opts ...Option) (*Manager, error) {
	if store == nil || users == nil {
		return nil, errors.New("session: store and user finder are required")
	}
	if len(cfg.Secret) < 32 {
		return nil, errors.New("session: secret must be at least 32 bytes")
	}
	if cfg.IdleTTL <= 0 || cfg.AbsoluteTTL < cfg.IdleTTL {
		return nil, errors.New("session: need 0 < idle ttl <= absolute ttl")
	}

	m := &Manager{
		store:       store,
		users:       users,
		signer:      signer{secret: cfg.Secret},
		idleTTL:     cfg.IdleTTL,
		absoluteTTL: cfg.AbsoluteTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Establish binds a new session to rec.ExternalID and returns the signed
// token for the client cookie.
func (m *Manager) Establish(ctx context.Context, rec *user.Record) (*Issued, error) {
	if rec == nil || rec.ExternalID == "" {
		return nil, errors.New("session: cannot establish without a persisted user")
	}

	sessionID, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	absolute := now.Add(m.absoluteTTL)

	s := Session{
		SessionID:         sessionID,
		ExternalID:        rec.ExternalID,
		CreatedAt:         now,
		ExpiresAt:         now.Add(m.idleTTL),
		AbsoluteExpiresAt: absolute,
	}

	token, err := m.signer.sign(sessionID, now, absolute)
	if err != nil {
		return nil, err
	}

	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("session: persist: %w", err)
	}

	return &Issued{Token: token, ExpiresAt: absolute}, nil
}

// Resolve returns the current user record behind token. Every failure,
// including store outages, resolves to an error wrapping
// auth.ErrUnauthenticated; tampered tokens wrap auth.ErrSessionCorrupted.
func (m *Manager) Resolve(ctx context.Context, token string) (*user.Record, error) {
	if token == "" {
		m.metrics.SessionResolve("anonymous")
		return nil, auth.ErrUnauthenticated
	}

	now := m.now()

	sessionID, err := m.signer.parse(token, now)
	if errors.Is(err, errTokenExpired) {
		m.metrics.SessionResolve("expired")
		return nil, auth.ErrUnauthenticated
	}
	if err != nil {
		m.metrics.SessionResolve("corrupted")
		return nil, fmt.Errorf("%w: %v", auth.ErrSessionCorrupted, err)
	}

	s, err := m.store.Get(ctx, sessionID)
	if err != nil {
		m.metrics.SessionResolve("store_error")
		logger.Error("session lookup failed", map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("%w: session store: %v", auth.ErrUnauthenticated, err)
	}
	if s == nil {
		m.metrics.SessionResolve("expired")
		return nil, auth.ErrUnauthenticated
	}

	if now.After(s.ExpiresAt) || now.After(s.AbsoluteExpiresAt) {
		_ = m.store.Delete(ctx, sessionID)
		m.metrics.SessionResolve("expired")
		return nil, auth.ErrUnauthenticated
	}

	// Always read the current record; nothing about the user is cached.
	rec, err := m.users.FindByExternalID(ctx, s.ExternalID)
	if errors.Is(err, user.ErrNotFound) {
		_ = m.store.Delete(ctx, sessionID)
		m.metrics.SessionResolve("revoked")
		logger.Info("session references deleted user", map[string]any{
			"external_id": s.ExternalID,
		})
		return nil, auth.ErrUnauthenticated
	}
	if err != nil {
		m.metrics.SessionResolve("store_error")
		logger.Error("user lookup for session failed", map[string]any{
			"external_id": s.ExternalID,
			"error":       err.Error(),
		})
		return nil, fmt.Errorf("%w: user store: %v", auth.ErrUnauthenticated, err)
	}

	m.renew(ctx, *s, now)

	m.metrics.SessionResolve("authenticated")
	return rec, nil
}

// renew slides the idle expiry once less than half of the idle window is
// left. It never extends past the absolute expiry.
func (m *Manager) renew(ctx context.Context, s Session, now time.Time) {
	if s.ExpiresAt.Sub(now) >= m.idleTTL/2 {
		return
	}

	next := now.Add(m.idleTTL)
	if next.After(s.AbsoluteExpiresAt) {
		next = s.AbsoluteExpiresAt
	}
	if !next.After(s.ExpiresAt) {
		return
	}
	s.ExpiresAt = next

	if err := m.store.Update(ctx, s); err != nil {
		logger.Warn("session renewal failed", map[string]any{"error": err.Error()})
	}
}

// Invalidate ends the session behind token. Invalid, expired or unknown
// tokens are a no-op.
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	// Expired tokens still name a session that may linger in the store.
	sessionID, err := m.signer.parse(token, time.Time{})
	if err != nil {
		return nil
	}

	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("session: invalidate: %w", err)
	}
	return nil
}

// InvalidateUser ends every session of the user.
func (m *Manager) InvalidateUser(ctx context.Context, externalID string) (int, error) {
	n, err := m.store.DeleteByExternalID(ctx, externalID)
	if err != nil {
		return 0, err
	}
	logger.Info("user sessions invalidated", map[string]any{
		"external_id": externalID,
		"count":       n,
	})
	return n, nil
}
