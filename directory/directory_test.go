package directory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authform"
	"github.com/MrEthical07/authform/password"
)

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, addr, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[addr] = token
	return nil
}

func (m *captureMailer) token(addr string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[addr]
}

func cheapPasswordConfig() password.Config {
	return password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}
}

func newTestStore(t *testing.T) (*Store, *captureMailer, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := DefaultConfig()
	cfg.Password = cheapPasswordConfig()
	mailer := &captureMailer{}
	s, err := New(rdb, cfg, mailer, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, mailer, mr
}

func TestNewRejectsBadConfig(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	if _, err := New(nil, DefaultConfig(), nil, nil); err == nil {
		t.Fatal("expected nil redis to fail")
	}
	cfg := DefaultConfig()
	cfg.ResetTTL = 0
	if _, err := New(rdb, cfg, nil, nil); err == nil {
		t.Fatal("expected zero ResetTTL to fail")
	}
	cfg = DefaultConfig()
	cfg.Password.Memory = 1
	if _, err := New(rdb, cfg, nil, nil); err == nil {
		t.Fatal("expected weak argon2 params to fail")
	}
}

func TestRegisterLoginAndLookup(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	exists, err := s.CheckEmailExists(ctx, "ana@example.com")
	if err != nil || exists {
		t.Fatalf("expected free email, got exists=%v err=%v", exists, err)
	}

	if err := s.Register(ctx, "ana@example.com", "secret", "Ana"); err != nil {
		t.Fatalf("register: %v", err)
	}
	exists, err = s.CheckEmailExists(ctx, "ana@example.com")
	if err != nil || !exists {
		t.Fatalf("expected taken email, got exists=%v err=%v", exists, err)
	}

	if err := s.Register(ctx, "ana@example.com", "another", ""); !errors.Is(err, authform.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	if err := s.Login(ctx, "ana@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := s.Login(ctx, "ana@example.com", "wrong!"); !errors.Is(err, authform.ErrInvalidLoginCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := s.Login(ctx, "nobody@example.com", "secret"); !errors.Is(err, authform.ErrInvalidLoginCredentials) {
		t.Fatalf("expected invalid credentials for unknown account, got %v", err)
	}
}

func TestRegisterRejectsPasswordLength(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"too short", "12345", ErrWeakPassword},
		{"too long", strings.Repeat("x", password.DefaultMaxPasswordBytes+1), ErrPasswordTooLong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Register(ctx, "ana@example.com", tc.password, "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if exists, err := s.CheckEmailExists(ctx, "ana@example.com"); err != nil || exists {
		t.Fatalf("rejected registrations must not create the account, got exists=%v err=%v", exists, err)
	}
	if ErrWeakPassword.Error() == ErrPasswordTooLong.Error() {
		t.Fatal("length errors must describe different limits")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	s, mailer, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, "ana@example.com", "secret", "Ana"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := s.ResetPassword(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("reset for unknown account should succeed silently: %v", err)
	}
	if mailer.token("nobody@example.com") != "" {
		t.Fatal("expected no token for unknown account")
	}

	if err := s.ResetPassword(ctx, "ana@example.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	token := mailer.token("ana@example.com")
	if token == "" {
		t.Fatal("expected token to be mailed")
	}

	if err := s.ConfirmPasswordReset(ctx, "garbage", "newsecret"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid, got %v", err)
	}
	if err := s.ConfirmPasswordReset(ctx, token, "newsecret"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := s.ConfirmPasswordReset(ctx, token, "again!!"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected token to be single use, got %v", err)
	}

	if err := s.Login(ctx, "ana@example.com", "secret"); !errors.Is(err, authform.ErrInvalidLoginCredentials) {
		t.Fatalf("expected old password to fail, got %v", err)
	}
	if err := s.Login(ctx, "ana@example.com", "newsecret"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestPasswordResetExpires(t *testing.T) {
	s, mailer, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, "ana@example.com", "secret", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.ResetPassword(ctx, "ana@example.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	if err := s.ConfirmPasswordReset(ctx, mailer.token("ana@example.com"), "newsecret"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}
}

func TestLoginRehashesWeakerHash(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, "ana@example.com", "secret", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	before, err := s.accounts.Get(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	stronger := cheapPasswordConfig()
	stronger.Time = 2
	hasher, err := password.NewArgon2(stronger)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	s.hasher = hasher

	if err := s.Login(ctx, "ana@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	after, err := s.accounts.Get(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.PasswordHash == before.PasswordHash {
		t.Fatal("expected hash to be upgraded")
	}
}

func TestDeleteAccount(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, "ana@example.com", "secret", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.DeleteAccount(ctx, "ana@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	exists, err := s.CheckEmailExists(ctx, "ana@example.com")
	if err != nil || exists {
		t.Fatalf("expected account removed, got exists=%v err=%v", exists, err)
	}
}

func TestStorageFailureIsReported(t *testing.T) {
	s, _, mr := newTestStore(t)
	mr.Close()

	if _, err := s.CheckEmailExists(context.Background(), "ana@example.com"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := s.Login(context.Background(), "ana@example.com", "secret"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFormAgainstDirectory(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Register(ctx, "taken@example.com", "secret", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	cfg := authform.DefaultConfig()
	cfg.Locale = authform.LocaleEN
	engine, err := authform.New().WithConfig(cfg).WithEmailLookup(s).WithBackend(s).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	defer engine.Close()

	form, err := engine.NewForm(authform.FormOptions{})
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	if err := form.SwitchMode(ctx, authform.ModeRegister); err != nil {
		t.Fatalf("switch mode: %v", err)
	}
	form.SetEmail(" Taken@Example.com ")
	view := form.BlurEmail(ctx)
	if view.Status != authform.StatusExists {
		t.Fatalf("expected exists verdict, got %s", view.Status)
	}

	form.SetEmail("fresh@example.com")
	form.SetPassword("secret")
	form.SetConfirmPassword("secret")
	out := form.Submit(ctx)
	if !out.Success {
		t.Fatalf("expected registration to succeed, got %+v", out)
	}
	exists, _ := s.CheckEmailExists(ctx, "fresh@example.com")
	if !exists {
		t.Fatal("expected account to be created")
	}
}
