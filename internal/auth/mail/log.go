package mail

import (
	"context"
	"log/slog"
)

// LogMailer writes messages to the log instead of sending them. It is the
// development mailer; the text body contains live codes and links.
type LogMailer struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email not sent (log mode)",
		"to", msg.To,
		"subject", msg.Subject,
		"preview", msg.Text,
	)
	return nil
}
