// Command authformd serves credential forms over HTTP. Each form is a
// server-side session created with POST /v1/forms and driven by field edits,
// email blur events, mode switches and submissions.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/MrEthical07/authform"
	"github.com/MrEthical07/authform/directory"
	"github.com/MrEthical07/authform/internal/logging"
	"github.com/MrEthical07/authform/jwt"
)

func main() {
	boot := logging.BootstrapLogger()
	cfg, err := Load(pflag.CommandLine, os.Args[1:], boot)
	if err != nil {
		boot.Fatal("load config", zap.Error(err))
	}

	logger, err := logging.BuildLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		boot.Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	logger.Debug("config", zap.String("dump", cfg.Dump()))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("authformd stopped", zap.Error(err))
	}
}

func run(cfg *AppConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, closeRedis, err := openRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	dirCfg := directory.DefaultConfig()
	dirCfg.ResetTTL = cfg.Session.ResetTTL
	dir, err := directory.New(rdb, dirCfg, nil, logger)
	if err != nil {
		return err
	}

	engine, err := authform.New().
		WithConfig(cfg.engineConfig()).
		WithRedis(rdb).
		WithEmailLookup(dir).
		WithBackend(dir).
		WithAuditSink(authform.NewZapSink(logger)).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	sessions, err := newSessionManager(cfg.Session, logger)
	if err != nil {
		return err
	}

	srv := newServer(*cfg, engine, dir, sessions, logger)
	go srv.forms.run(ctx, time.Minute)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

// openRedis connects to cfg.RedisAddr or, when it is empty, starts an
// in-process miniredis.
func openRedis(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.RedisAddr
	var embedded *miniredis.Miniredis
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		embedded = mr
		addr = mr.Addr()
		logger.Warn("using embedded miniredis; data is lost on exit")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		if embedded != nil {
			embedded.Close()
		}
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, func() {
		_ = rdb.Close()
		if embedded != nil {
			embedded.Close()
		}
	}, nil
}

// newSessionManager builds the HS256 session signer. Without a configured
// key a random one is generated, so sessions do not survive a restart.
func newSessionManager(cfg SessionConfig, logger *zap.Logger) (*jwt.Manager, error) {
	key := []byte(cfg.SessionSigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		logger.Warn("session_signing_key not set; using an ephemeral key")
	}
	return jwt.NewManager(jwt.Config{
		SessionTTL:    cfg.SessionTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    key,
		Issuer:        cfg.SessionIssuer,
	})
}
