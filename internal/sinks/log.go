package sinks

import (
	"context"
	"log/slog"
)

// Log writes notifications to a slog logger, mostly useful when running in a terminal.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) Log {
	if logger == nil {
		logger = slog.Default()
	}
	return Log{logger: logger}
}

func (l Log) Notify(ctx context.Context, title, body string) error {
	l.logger.InfoContext(ctx, "notification", "title", title, "body", body)
	return nil
}
