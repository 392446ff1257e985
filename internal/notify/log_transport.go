package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport writes messages to the log instead of a chat. Used when no bot token is set.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport returns a transport that only logs.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger.Named("chat_log")}
}

func (t *LogTransport) Send(_ context.Context, chatID string, msg Message) error {
	t.logger.Info("chat message", zap.String("chat_id", chatID), zap.String("text", msg.Text))
	return nil
}
