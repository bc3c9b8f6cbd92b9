package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/authform"
	"github.com/MrEthical07/authform/email"
	"github.com/MrEthical07/authform/internal"
	"github.com/MrEthical07/authform/internal/stores"
	"github.com/MrEthical07/authform/password"
)

var (
	// ErrResetTokenInvalid is returned for unknown, expired, used or exhausted reset tokens.
	ErrResetTokenInvalid = errors.New("password reset token is invalid or has expired")
	// ErrUnavailable wraps storage failures.
	ErrUnavailable = errors.New("account directory unavailable")
	// ErrWeakPassword is returned when a password is shorter than the hasher's minimum.
	ErrWeakPassword = errors.New("Password should be at least 6 characters")
	// ErrPasswordTooLong is returned when a password exceeds the hasher's byte limit.
	ErrPasswordTooLong = errors.New("Password is too long")
)

// Config controls storage keys, reset tokens and password hashing.
type Config struct {
	KeyPrefix        string
	ResetTTL         time.Duration
	ResetMaxAttempts int
	Password         password.Config
}

// DefaultConfig returns a one hour reset window with five redemption attempts.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:        "afd",
		ResetTTL:         time.Hour,
		ResetMaxAttempts: 5,
		Password:         password.DefaultConfig(),
	}
}

// Store implements authform.EmailLookup and authform.Backend.
type Store struct {
	accounts    *stores.AccountStore
	resets      *stores.PasswordResetStore
	hasher      *password.Argon2
	mailer      Mailer
	resetTTL    time.Duration
	maxAttempts int
	logger      *zap.Logger
}

var (
	_ authform.EmailLookup = (*Store)(nil)
	_ authform.Backend     = (*Store)(nil)
)

// New builds a Store. A nil mailer logs reset tokens through logger.
func New(rdb redis.UniversalClient, cfg Config, mailer Mailer, logger *zap.Logger) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("directory: redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "afd"
	}
	if cfg.ResetTTL <= 0 {
		return nil, errors.New("directory: ResetTTL must be > 0")
	}
	if cfg.ResetMaxAttempts <= 0 {
		return nil, errors.New("directory: ResetMaxAttempts must be > 0")
	}
	hasher, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("directory")
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}

	return &Store{
		accounts:    stores.NewAccountStore(rdb, cfg.KeyPrefix+":acct"),
		resets:      stores.NewPasswordResetStore(rdb, cfg.KeyPrefix+":reset"),
		hasher:      hasher,
		mailer:      mailer,
		resetTTL:    cfg.ResetTTL,
		maxAttempts: cfg.ResetMaxAttempts,
		logger:      logger,
	}, nil
}

func (s *Store) CheckEmailExists(ctx context.Context, normalizedEmail string) (bool, error) {
	exists, err := s.accounts.Exists(ctx, email.Normalize(normalizedEmail))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return exists, nil
}

func (s *Store) Login(ctx context.Context, normalizedEmail, pass string) error {
	addr := email.Normalize(normalizedEmail)
	acct, err := s.accounts.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, stores.ErrAccountNotFound) {
			return authform.ErrInvalidLoginCredentials
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ok, err := s.hasher.Verify(pass, acct.PasswordHash)
	if err != nil || !ok {
		return authform.ErrInvalidLoginCredentials
	}

	if upgrade, err := s.hasher.NeedsUpgrade(acct.PasswordHash); err == nil && upgrade {
		if hash, err := s.hasher.Hash(pass); err == nil {
			if err := s.accounts.SetPasswordHash(ctx, addr, hash); err != nil {
				s.logger.Warn("password rehash failed", zap.Error(err))
			}
		}
	}
	return nil
}

func (s *Store) Register(ctx context.Context, normalizedEmail, pass, name string) error {
	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return hashError(err)
	}

	err = s.accounts.Create(ctx, &stores.Account{
		Email:        email.Normalize(normalizedEmail),
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    time.Now(),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrAccountExists):
		return authform.ErrAlreadyRegistered
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// ResetPassword issues a reset token when the account exists and reports
// success either way.
func (s *Store) ResetPassword(ctx context.Context, normalizedEmail string) error {
	addr := email.Normalize(normalizedEmail)
	exists, err := s.accounts.Exists(ctx, addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !exists {
		s.logger.Debug("reset requested for unknown account")
		return nil
	}

	resetID, token, secretHash, err := internal.NewResetToken()
	if err != nil {
		return err
	}
	record := &stores.PasswordResetRecord{
		Email:      addr,
		SecretHash: secretHash,
		ExpiresAt:  time.Now().Add(s.resetTTL).Unix(),
	}
	if err := s.resets.Save(ctx, resetID, record, s.resetTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return s.mailer.SendPasswordReset(ctx, addr, token)
}

// ConfirmPasswordReset redeems token and sets newPassword on its account.
func (s *Store) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	resetID, secretHash, err := internal.DecodeResetToken(token)
	if err != nil {
		return ErrResetTokenInvalid
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return hashError(err)
	}

	record, err := s.resets.Consume(ctx, resetID, secretHash, s.maxAttempts)
	if err != nil {
		if errors.Is(err, stores.ErrResetRedisUnavailable) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return ErrResetTokenInvalid
	}

	if err := s.accounts.SetPasswordHash(ctx, record.Email, hash); err != nil {
		if errors.Is(err, stores.ErrAccountNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteAccount removes normalizedEmail from the directory.
func (s *Store) DeleteAccount(ctx context.Context, normalizedEmail string) error {
	if err := s.accounts.Delete(ctx, email.Normalize(normalizedEmail)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func hashError(err error) error {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return ErrWeakPassword
	case errors.Is(err, password.ErrPasswordTooLong):
		return ErrPasswordTooLong
	default:
		return err
	}
}
