package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myplayplanet/backend/internal/config"
	"github.com/myplayplanet/backend/internal/db"
	"github.com/myplayplanet/backend/internal/model"
	"github.com/myplayplanet/backend/internal/ratelimit"
	"github.com/myplayplanet/backend/internal/secure"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
	minPasswordLength = 8
	maxPasswordLength = 128
)

// ObtainEncryptionKey re-derives the account key from password and the
// stored nonce. The key decrypts the TOTP secret.
func ObtainEncryptionKey(account *model.Account, password string) ([]byte, error) {
	salt, err := secure.DecodeSalt(account.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: account nonce: %v", ErrInternal, err)
	}
	key, err := secure.DeriveKey(password, salt)
	if err != nil {
		return nil, fmt.Errorf("%w: derive key: %v", ErrInternal, err)
	}
	return key, nil
}

// verifyPassword returns the account key when password is correct.
func verifyPassword(account *model.Account, password string) ([]byte, error) {
	key, err := ObtainEncryptionKey(account, password)
	if err != nil {
		return nil, err
	}
	ok, err := secure.VerifyKey(key, account.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: stored key hash: %v", ErrInternal, err)
	}
	if !ok {
		return nil, ErrUnauthorized
	}
	return key, nil
}

// Authenticate checks password and, when the account has TOTP enabled, the
// code of the current 30 second window. A missing token on a TOTP account
// yields ErrTOTPRequired.
func Authenticate(account *model.Account, password string, token *string, now time.Time) error {
	key, err := verifyPassword(account, password)
	if err != nil {
		return err
	}
	if account.Locked {
		return ErrUnauthorized
	}
	if !account.TOTP {
		return nil
	}
	if token == nil || strings.TrimSpace(*token) == "" {
		return ErrTOTPRequired
	}
	return checkToken(account, key, *token, now)
}

func checkToken(account *model.Account, key []byte, token string, now time.Time) error {
	secret, err := secure.Decrypt(key, account.Secret)
	if err != nil {
		return fmt.Errorf("%w: totp secret: %v", ErrInternal, err)
	}
	ok, err := secure.VerifyTOTP(secret, token, now)
	if err != nil {
		return fmt.Errorf("%w: totp: %v", ErrInternal, err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// RegenerateSecret replaces the TOTP secret with a fresh one sealed under the
// key of the current password and returns the new plain secret. The caller
// persists the account.
func RegenerateSecret(account *model.Account, password string) (string, error) {
	key, err := verifyPassword(account, password)
	if err != nil {
		return "", err
	}
	return sealNewSecret(account, key)
}

func sealNewSecret(account *model.Account, key []byte) (string, error) {
	secret, err := secure.NewTOTPSecret()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	sealed, err := secure.Encrypt(key, secret)
	if err != nil {
		return "", fmt.Errorf("%w: seal totp secret: %v", ErrInternal, err)
	}
	account.Secret = sealed
	return secret, nil
}

// ReadSecret decrypts the TOTP secret. A wrong password fails decryption and
// is reported as ErrUnauthorized.
func ReadSecret(account *model.Account, password string) (string, error) {
	key, err := ObtainEncryptionKey(account, password)
	if err != nil {
		return "", err
	}
	secret, err := secure.Decrypt(key, account.Secret)
	if err != nil {
		if errors.Is(err, secure.ErrDecrypt) {
			return "", ErrUnauthorized
		}
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return secret, nil
}

// setPassword stores a new nonce and key hash on the account and returns the
// new key.
func setPassword(account *model.Account, password string) ([]byte, error) {
	nonce, err := secure.NewSalt()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	account.Nonce = nonce

	key, err := ObtainEncryptionKey(account, password)
	if err != nil {
		return nil, err
	}
	hash, err := secure.HashKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	account.Password = hash
	return key, nil
}

// AccountLinker resolves an authorization code into the subject of an
// external identity.
type AccountLinker interface {
	Subject(ctx context.Context, code string) (string, error)
}

type AuthService struct {
	accounts AccountStore
	sessions *SessionManager
	limiter  *ratelimit.LoginLimiter
	linker   AccountLinker
	issuer   string
	logger   *slog.Logger
	now      func() time.Time

	// decoy is checked for unknown usernames so they cost the same key
	// derivation as known ones.
	decoy *model.Account
}

// NewAuthService wires account handling. limiter and linker may be nil.
func NewAuthService(
	accounts AccountStore,
	sessions *SessionManager,
	limiter *ratelimit.LoginLimiter,
	linker AccountLinker,
	cfg config.TOTPConfig,
	logger *slog.Logger,
) (*AuthService, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: TOTP_ISSUER is required", ErrMisconfigured)
	}
	if logger == nil {
		logger = slog.Default()
	}

	decoyPassword, err := secure.RandomString(32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	decoy := &model.Account{Username: "decoy"}
	if _, err := setPassword(decoy, decoyPassword); err != nil {
		return nil, err
	}

	return &AuthService{
		accounts: accounts,
		sessions: sessions,
		limiter:  limiter,
		linker:   linker,
		issuer:   cfg.Issuer,
		logger:   logger,
		now:      time.Now,
		decoy:    decoy,
	}, nil
}

// Signup creates an account with TOTP disabled and a sealed secret ready to
// be enrolled.
func (s *AuthService) Signup(ctx context.Context, username, password string) (*model.Account, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	account := &model.Account{Username: username}
	key, err := setPassword(account, password)
	if err != nil {
		return nil, err
	}
	if _, err := sealNewSecret(account, key); err != nil {
		return nil, err
	}

	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if db.IsDuplicate(err) {
			return nil, &Error{Kind: ErrConflict, Message: "username already taken"}
		}
		return nil, fmt.Errorf("%w: create account: %v", ErrInternal, err)
	}

	s.logger.Info("account created", "account", account.ID.String())
	return account, nil
}

// Login authenticates the credentials and starts a human session, ending
// any session the account already had.
func (s *AuthService) Login(ctx context.Context, username, password string, token *string) (*model.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrUnauthorized
	}

	if err := s.limiter.Check(ctx, username); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			return nil, ErrTooManyRequests
		}
		s.logger.Warn("login limiter unavailable", "error", err)
	}

	account, err := s.accounts.GetAccountByUsername(ctx, username)
	if err != nil {
		if db.IsNoRows(err) {
			_, _ = verifyPassword(s.decoy, password)
			s.recordFailure(ctx, username)
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: load account: %v", ErrInternal, err)
	}

	if err := Authenticate(account, password, token, s.now()); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.recordFailure(ctx, username)
		}
		return nil, err
	}

	if err := s.limiter.Reset(ctx, username); err != nil {
		s.logger.Warn("failed to reset login attempts", "error", err)
	}
	return s.sessions.Init(ctx, model.HumanTarget(account.ID))
}

func (s *AuthService) recordFailure(ctx context.Context, username string) {
	if err := s.limiter.Fail(ctx, username); err != nil {
		s.logger.Warn("failed to record login attempt", "error", err)
	}
}

// Refresh rotates the session identified by sessionID.
func (s *AuthService) Refresh(ctx context.Context, sessionID, refreshToken string) (*model.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessions.Refresh(ctx, session, refreshToken)
}

func (s *AuthService) Logout(ctx context.Context, session *model.Session) error {
	return s.sessions.End(ctx, session)
}

// ChangePassword re-keys the account: a new nonce and key hash, and the TOTP
// secret sealed again under the new key.
func (s *AuthService) ChangePassword(ctx context.Context, account *model.Account, oldPassword, newPassword string, token *string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if err := Authenticate(account, oldPassword, token, s.now()); err != nil {
		return err
	}
	secret, err := ReadSecret(account, oldPassword)
	if err != nil {
		return err
	}

	updated := *account
	key, err := setPassword(&updated, newPassword)
	if err != nil {
		return err
	}
	if updated.Secret, err = secure.Encrypt(key, secret); err != nil {
		return fmt.Errorf("%w: seal totp secret: %v", ErrInternal, err)
	}

	if err := s.save(ctx, &updated); err != nil {
		return err
	}
	*account = updated
	return nil
}

// ToggleTOTP flips the TOTP flag. Both the password and the code of the
// current window are required either way.
func (s *AuthService) ToggleTOTP(ctx context.Context, account *model.Account, password, token string) (*model.Account, error) {
	key, err := verifyPassword(account, password)
	if err != nil {
		return nil, err
	}
	if err := checkToken(account, key, token, s.now()); err != nil {
		return nil, err
	}

	updated := *account
	updated.TOTP = !account.TOTP
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}

	s.logger.Info("totp toggled", "account", updated.ID.String(), "enabled", updated.TOTP)
	return &updated, nil
}

// TOTPProvisioning returns the otpauth:// URI of the current secret.
func (s *AuthService) TOTPProvisioning(ctx context.Context, account *model.Account, password string) (string, error) {
	if _, err := verifyPassword(account, password); err != nil {
		return "", err
	}
	secret, err := ReadSecret(account, password)
	if err != nil {
		return "", err
	}
	return secure.ProvisioningURI(s.issuer, account.Username, secret), nil
}

// RegenerateTOTPSecret replaces the secret and returns the new URI. While
// TOTP is enabled the current code is required as well.
func (s *AuthService) RegenerateTOTPSecret(ctx context.Context, account *model.Account, password string, token *string) (string, error) {
	if err := Authenticate(account, password, token, s.now()); err != nil {
		return "", err
	}

	updated := *account
	secret, err := RegenerateSecret(&updated, password)
	if err != nil {
		return "", err
	}
	if err := s.save(ctx, &updated); err != nil {
		return "", err
	}
	*account = updated
	return secure.ProvisioningURI(s.issuer, account.Username, secret), nil
}

// ChangeUsername renames target. Accounts may only rename themselves.
func (s *AuthService) ChangeUsername(ctx context.Context, actor *model.Account, target model.ID, username string) (*model.Account, error) {
	if actor.ID != target {
		return nil, ErrUnauthorized
	}
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	updated := *actor
	updated.Username = username
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// LinkAccount attaches the external identity behind code to the account.
func (s *AuthService) LinkAccount(ctx context.Context, account *model.Account, code string) (*model.Account, error) {
	if s.linker == nil {
		return nil, &Error{Kind: ErrInvalidInput, Message: "account linking is not configured"}
	}
	if strings.TrimSpace(code) == "" {
		return nil, badRequest("code is required")
	}

	subject, err := s.linker.Subject(ctx, code)
	if err != nil {
		s.logger.Info("account link rejected", "account", account.ID.String(), "error", err)
		return nil, ErrUnauthorized
	}

	updated := *account
	updated.UUID = &subject
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *AuthService) save(ctx context.Context, account *model.Account) error {
	if err := s.accounts.UpdateAccount(ctx, account); err != nil {
		switch {
		case db.IsDuplicate(err):
			return &Error{Kind: ErrConflict, Message: "already in use"}
		case db.IsNoRows(err):
			return ErrUnauthorized
		default:
			return fmt.Errorf("%w: update account: %v", ErrInternal, err)
		}
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return badRequest("username must be %d-%d characters", minUsernameLength, maxUsernameLength)
	}
	if strings.Contains(username, ":") {
		return badRequest("username must not contain ':'")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return badRequest("password must be %d-%d characters", minPasswordLength, maxPasswordLength)
	}
	return nil
}
