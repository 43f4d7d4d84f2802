package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/myplayplanet/backend/internal/model"
	"github.com/myplayplanet/backend/internal/ratelimit"
	"github.com/myplayplanet/backend/internal/secure"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupStoresDerivedKeyOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)

	assert.Equal(t, model.TableAccount, account.ID.Table)
	assert.NotContains(t, account.Password, "secretpw")
	assert.Contains(t, account.Password, "$argon2id$")
	assert.False(t, account.TOTP)

	secret, err := ReadSecret(account, "secretpw")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)

	_, err = ReadSecret(account, "wrongpass")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Signup(ctx, "al", "secretpw")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.auth.Signup(ctx, "alice", "short")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.auth.Signup(ctx, "account:x", "secretpw")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)
	_, err = env.auth.Signup(ctx, "alice", "otherpass")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLoginWithoutTOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)

	session, err := env.auth.Login(ctx, "alice", "secretpw", nil)
	require.NoError(t, err)
	assert.Equal(t, model.HumanTarget(account.ID), session.Target)
	assert.Len(t, session.ID, 32)
	assert.Len(t, session.RefreshToken, 64)

	_, err = env.auth.Login(ctx, "alice", "wrongpass", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.auth.Login(ctx, "nobody", "secretpw", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// a token is ignored while TOTP is off
	_, err = env.auth.Login(ctx, "alice", "secretpw", strPtr("000000"))
	assert.NoError(t, err)
}

func TestLoginRejectsLockedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)
	account.Locked = true
	require.NoError(t, env.store.UpdateAccount(ctx, account))

	_, err = env.auth.Login(ctx, "alice", "secretpw", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUnknownUsernameChecksDecoy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// the decoy carries a real nonce and key hash, so checking it runs the
	// full derivation and ends in a plain mismatch
	require.NotNil(t, env.auth.decoy)
	assert.NotEmpty(t, env.auth.decoy.Nonce)
	assert.NotEmpty(t, env.auth.decoy.Password)
	_, err := verifyPassword(env.auth.decoy, "secretpw")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.auth.Login(ctx, "nobody", "secretpw", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrInternal)
}

func TestSessionExpiresAfterLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)

	session, err := env.auth.Login(ctx, "alice", "secretpw", nil)
	require.NoError(t, err)
	assert.Equal(t, session.IssuedAt+3600, session.ExpiresAt)
	assert.Equal(t, session.IssuedAt+5400, session.RefreshExp)

	_, err = env.sessions.IsSessionValid(ctx, session.ID)
	require.NoError(t, err)

	env.clock.Advance(3601 * time.Second)
	_, err = env.sessions.IsSessionValid(ctx, session.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, env.store.SessionCount())
}

func TestTOTPToggleThenLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)
	secret, err := ReadSecret(account, "secretpw")
	require.NoError(t, err)

	code, err := secure.TOTPCode(secret, env.clock.Now())
	require.NoError(t, err)

	_, err = env.auth.ToggleTOTP(ctx, account, "wrongpass", code)
	require.ErrorIs(t, err, ErrUnauthorized)

	updated, err := env.auth.ToggleTOTP(ctx, account, "secretpw", code)
	require.NoError(t, err)
	require.True(t, updated.TOTP)

	_, err = env.auth.Login(ctx, "alice", "secretpw", nil)
	require.ErrorIs(t, err, ErrForbidden)
	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "TOTP is required", svcErr.Message)

	previous, err := secure.TOTPCode(secret, env.clock.Now().Add(-30*time.Second))
	require.NoError(t, err)
	_, err = env.auth.Login(ctx, "alice", "secretpw", &previous)
	assert.ErrorIs(t, err, ErrUnauthorized)

	next, err := secure.TOTPCode(secret, env.clock.Now().Add(30*time.Second))
	require.NoError(t, err)
	_, err = env.auth.Login(ctx, "alice", "secretpw", &next)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.auth.Login(ctx, "alice", "wrongpass", nil)
	assert.ErrorIs(t, err, ErrUnauthorized, "a bad password never reaches the TOTP step")

	session, err := env.auth.Login(ctx, "alice", "secretpw", &code)
	require.NoError(t, err)
	assert.Equal(t, model.HumanTarget(account.ID), session.Target)
}

func TestChangePasswordRekeysSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)
	before, err := ReadSecret(account, "secretpw")
	require.NoError(t, err)

	err = env.auth.ChangePassword(ctx, account, "wrongpass", "newsecret", nil)
	require.ErrorIs(t, err, ErrUnauthorized)

	err = env.auth.ChangePassword(ctx, account, "secretpw", "tiny", nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, env.auth.ChangePassword(ctx, account, "secretpw", "newsecret", nil))

	after, err := ReadSecret(account, "newsecret")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = env.auth.Login(ctx, "alice", "secretpw", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.auth.Login(ctx, "alice", "newsecret", nil)
	assert.NoError(t, err)
}

func TestRegenerateTOTPSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)
	before, err := ReadSecret(account, "secretpw")
	require.NoError(t, err)

	uri, err := env.auth.RegenerateTOTPSecret(ctx, account, "secretpw", nil)
	require.NoError(t, err)

	after, err := ReadSecret(account, "secretpw")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.Contains(t, uri, "secret="+after)

	stored, err := env.store.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.Secret, stored.Secret)
}

func TestTOTPProvisioning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)

	uri, err := env.auth.TOTPProvisioning(ctx, account, "secretpw")
	require.NoError(t, err)
	assert.Contains(t, uri, "otpauth://totp/MyPlayPlanet:alice?")
	assert.Contains(t, uri, "algorithm=SHA256")

	_, err = env.auth.TOTPProvisioning(ctx, account, "wrongpass")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestChangeUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice, err := env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)
	bob, err := env.auth.Signup(ctx, "bob", "secretpw")
	require.NoError(t, err)

	_, err = env.auth.ChangeUsername(ctx, alice, bob.ID, "mallory")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.auth.ChangeUsername(ctx, alice, alice.ID, "bob")
	assert.ErrorIs(t, err, ErrConflict)

	renamed, err := env.auth.ChangeUsername(ctx, alice, alice.ID, "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", renamed.Username)

	_, err = env.auth.Login(ctx, "alicia", "secretpw", nil)
	assert.NoError(t, err)
}

type stubLinker struct {
	subject string
	err     error
}

func (s stubLinker) Subject(context.Context, string) (string, error) {
	return s.subject, s.err
}

func TestLinkAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)

	_, err = env.auth.LinkAccount(ctx, account, "code")
	require.ErrorIs(t, err, ErrInvalidInput, "linking disabled")

	env.auth.linker = stubLinker{subject: "ext-1"}
	linked, err := env.auth.LinkAccount(ctx, account, "code")
	require.NoError(t, err)
	require.NotNil(t, linked.UUID)
	assert.Equal(t, "ext-1", *linked.UUID)

	other, err := env.auth.Signup(ctx, "bob", "secretpw")
	require.NoError(t, err)
	_, err = env.auth.LinkAccount(ctx, other, "code")
	assert.ErrorIs(t, err, ErrConflict)

	env.auth.linker = stubLinker{err: errors.New("invalid_grant")}
	_, err = env.auth.LinkAccount(ctx, other, "code")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoginThrottled(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newTestEnvWithLimiter(t, ratelimit.NewLoginLimiter(client, 2, time.Minute))
	ctx := context.Background()

	_, err = env.auth.Signup(ctx, "alice", "secretpw")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = env.auth.Login(ctx, "alice", "wrongpass", nil)
		require.ErrorIs(t, err, ErrUnauthorized)
	}
	_, err = env.auth.Login(ctx, "alice", "secretpw", nil)
	assert.ErrorIs(t, err, ErrTooManyRequests)

	mr.FastForward(2 * time.Minute)
	_, err = env.auth.Login(ctx, "alice", "secretpw", nil)
	assert.NoError(t, err)
}
