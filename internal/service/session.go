package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myplayplanet/backend/internal/config"
	"github.com/myplayplanet/backend/internal/db"
	"github.com/myplayplanet/backend/internal/model"
	"github.com/myplayplanet/backend/internal/secure"
)

const (
	sessionIDLength    = 32
	refreshTokenLength = 64
)

// SessionManager issues and checks bearer sessions. A target owns at most
// one session at a time.
type SessionManager struct {
	store      SessionStore
	ttl        time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewSessionManager(store SessionStore, cfg config.SessionConfig, logger *slog.Logger) (*SessionManager, error) {
	ttl, err := time.ParseDuration(cfg.TTL)
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("%w: invalid SESSION_TTL", ErrMisconfigured)
	}
	refreshTTL, err := time.ParseDuration(cfg.RefreshTTL)
	if err != nil || refreshTTL < ttl {
		return nil, fmt.Errorf("%w: invalid SESSION_REFRESH_TTL", ErrMisconfigured)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionManager{
		store:      store,
		ttl:        ttl,
		refreshTTL: refreshTTL,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Init starts a new session for target, ending any session it already had.
func (m *SessionManager) Init(ctx context.Context, target model.Target) (*model.Session, error) {
	id, err := secure.RandomString(sessionIDLength)
	if err != nil {
		return nil, fmt.Errorf("%w: session id: %v", ErrInternal, err)
	}

	session := &model.Session{ID: id, Target: target}
	if err := m.stamp(session); err != nil {
		return nil, err
	}
	if err := m.store.ReplaceSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: storing session: %v", ErrInternal, err)
	}

	m.logger.Info("session started", "session", session.Ref().String(), "target_type", target.Kind)
	return session, nil
}

// IsSessionValid loads the session by id and checks its expiry.
func (m *SessionManager) IsSessionValid(ctx context.Context, id string) (*model.Session, error) {
	session, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.IsValid(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get loads a session by bare or "session:" prefixed id.
func (m *SessionManager) Get(ctx context.Context, id string) (*model.Session, error) {
	key, err := ParseSessionID(id)
	if err != nil {
		return nil, err
	}
	session, err := m.store.GetSession(ctx, key)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: loading session: %v", ErrInternal, err)
	}
	return session, nil
}

// IsValid rejects an expired session and removes it from the store.
func (m *SessionManager) IsValid(ctx context.Context, session *model.Session) error {
	if m.now().Unix() < session.ExpiresAt {
		return nil
	}
	if err := m.store.DeleteSession(ctx, session.ID); err != nil {
		m.logger.Warn("failed to delete expired session", "session", session.Ref().String(), "error", err)
	}
	return ErrUnauthorized
}

// Refresh rotates the session when refreshToken matches and the refresh
// window is still open. Any other outcome ends the session. The store only
// rotates while refreshToken is still current, so a token loses any race
// against a concurrent refresh.
func (m *SessionManager) Refresh(ctx context.Context, session *model.Session, refreshToken string) (*model.Session, error) {
	matches := subtle.ConstantTimeCompare([]byte(session.RefreshToken), []byte(refreshToken)) == 1
	if !matches || m.now().Unix() >= session.RefreshExp {
		if err := m.End(ctx, session); err != nil {
			return nil, err
		}
		m.logger.Info("session revoked on refresh", "session", session.Ref().String(), "token_match", matches)
		return nil, ErrUnauthorized
	}

	rotated := *session
	if err := m.stamp(&rotated); err != nil {
		return nil, err
	}
	if err := m.store.RotateSession(ctx, &rotated, refreshToken); err != nil {
		if db.IsNoRows(err) {
			if err := m.End(ctx, session); err != nil {
				return nil, err
			}
			m.logger.Info("session revoked on stale refresh", "session", session.Ref().String())
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: updating session: %v", ErrInternal, err)
	}
	return &rotated, nil
}

// End deletes the session. Ending an unknown session succeeds.
func (m *SessionManager) End(ctx context.Context, session *model.Session) error {
	if err := m.store.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("%w: deleting session: %v", ErrInternal, err)
	}
	return nil
}

// FetchByTarget returns the live session of target.
func (m *SessionManager) FetchByTarget(ctx context.Context, target model.Target) (*model.Session, error) {
	session, err := m.store.GetSessionByTarget(ctx, target)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: loading session: %v", ErrInternal, err)
	}
	if err := m.IsValid(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// stamp sets fresh timestamps and a new refresh token.
func (m *SessionManager) stamp(session *model.Session) error {
	token, err := secure.RandomString(refreshTokenLength)
	if err != nil {
		return fmt.Errorf("%w: refresh token: %v", ErrInternal, err)
	}
	iat := m.now().Unix()
	session.IssuedAt = iat
	session.ExpiresAt = iat + int64(m.ttl/time.Second)
	session.RefreshToken = token
	session.RefreshExp = iat + int64(m.refreshTTL/time.Second)
	return nil
}

// ParseSessionID accepts a bare session id or one tagged "session:".
func ParseSessionID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrUnauthorized
	}
	if !strings.Contains(raw, ":") {
		return raw, nil
	}
	id, err := model.ParseID(model.TableSession, raw)
	if err != nil {
		return "", &Error{Kind: ErrInvalidInput, Message: err.Error()}
	}
	return id.Key, nil
}
