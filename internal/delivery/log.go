package delivery

import (
	"context"
	"log/slog"
)

// Log is a Sender that only logs the message. Useful for dry runs and for
// running without a chat backend.
type Log struct {
	Logger *slog.Logger
}

// Send logs the message and reports success.
func (l *Log) Send(_ context.Context, group, message string) error {
	l.Logger.Info("delivery (log only)",
		"group", group,
		"message", message,
	)
	return nil
}
