package mail

import (
	"context"

	"go.uber.org/zap"
)

// Log writes mails to the logger. Useful in development, where the reset
// link can be copied from the log.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging mailer.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	l.logger.Info("password reset mail",
		zap.String("to", to),
		zap.String("reset_url", resetURL),
	)
	return nil
}
