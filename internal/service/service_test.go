package service

import (
	"context"
	"testing"
	"time"

	"github.com/myplayplanet/backend/internal/config"
	"github.com/myplayplanet/backend/internal/db/memory"
	"github.com/myplayplanet/backend/internal/ratelimit"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source shared by the services under test.
type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	store    *memory.Store
	clock    *clock
	sessions *SessionManager
	auth     *AuthService
	authz    *Authorizer
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLimiter(t, nil)
}

func newTestEnvWithLimiter(t *testing.T, limiter *ratelimit.LoginLimiter) *testEnv {
	t.Helper()

	store := memory.New()
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}

	sessions, err := NewSessionManager(store, config.SessionConfig{TTL: "1h", RefreshTTL: "90m"}, nil)
	require.NoError(t, err)
	sessions.now = clk.Now

	auth, err := NewAuthService(store, sessions, limiter, nil, config.TOTPConfig{Issuer: "MyPlayPlanet"}, nil)
	require.NoError(t, err)
	auth.now = clk.Now

	authz, err := NewAuthorizer(store, map[string][]string{"importer": {"news.create"}}, nil)
	require.NoError(t, err)
	require.NoError(t, authz.InitPermissions(context.Background()))

	return &testEnv{store: store, clock: clk, sessions: sessions, auth: auth, authz: authz}
}

func strPtr(s string) *string { return &s }
