package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/myplayplanet/backend/internal/config"
	"github.com/myplayplanet/backend/internal/model"
)

// MachineAuthenticator opens machine sessions for configured API clients.
// A client proves itself with an HS256 assertion whose subject is its id.
type MachineAuthenticator struct {
	secret   []byte
	authz    *Authorizer
	sessions *SessionManager
	logger   *slog.Logger
	now      func() time.Time
}

// NewMachineAuthenticator returns nil when no assertion secret is configured,
// which disables machine logins.
func NewMachineAuthenticator(cfg config.MachineConfig, authz *Authorizer, sessions *SessionManager, logger *slog.Logger) *MachineAuthenticator {
	if strings.TrimSpace(cfg.AssertionSecret) == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MachineAuthenticator{
		secret:   []byte(cfg.AssertionSecret),
		authz:    authz,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *MachineAuthenticator) Login(ctx context.Context, assertion string) (*model.Session, error) {
	if m == nil {
		return nil, ErrUnauthorized
	}
	clientID, err := m.verify(assertion)
	if err != nil {
		m.logger.Info("machine assertion rejected", "error", err)
		return nil, ErrUnauthorized
	}
	return m.sessions.Init(ctx, model.MachineTarget(clientID))
}

func (m *MachineAuthenticator) verify(assertion string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(assertion, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}
	if !m.authz.IsMachineClient(claims.Subject) {
		return "", fmt.Errorf("unknown client %q", claims.Subject)
	}
	return claims.Subject, nil
}
