package notify

import (
	"context"

	"log/slog"
)

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers event emails. Delivery is a side effect the core never
// depends on; callers log failures and continue.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer records outbound mail instead of delivering it. Used in
// development and wherever no provider is configured.
type LogMailer struct {
	From   string
	Logger *slog.Logger
}

// Send logs the message.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	m.Logger.Info("mail queued", "from", m.From, "to", msg.To, "subject", msg.Subject)
	return nil
}
