package directory

import (
	"context"

	"go.uber.org/zap"
)

// Mailer delivers password reset tokens.
type Mailer interface {
	SendPasswordReset(ctx context.Context, normalizedEmail, token string) error
}

// LogMailer writes reset tokens to a zap logger instead of sending mail.
// Intended for development and tests.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mailer")}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, normalizedEmail, token string) error {
	m.logger.Info("password reset issued",
		zap.String("email", normalizedEmail),
		zap.String("token", token),
	)
	return nil
}
