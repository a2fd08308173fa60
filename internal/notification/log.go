package notification

import (
	"context"

	"github.com/Payphone-Digital/account-security/pkg/logger"
)

// LogSender records that a notification would have been sent without
// delivering it. The token never reaches the log.
type LogSender struct {
	links Links
}

func NewLogSender(baseURL string) *LogSender {
	return &LogSender{links: Links{BaseURL: baseURL}}
}

func (s *LogSender) SendPasswordReset(ctx context.Context, to, name, token string) error {
	msg, err := resetMessage(s.links, to, name, token)
	if err != nil {
		return err
	}
	s.record(ctx, msg)
	return nil
}

func (s *LogSender) SendEmailVerification(ctx context.Context, to, name, token string) error {
	msg, err := verificationMessage(s.links, to, name, token)
	if err != nil {
		return err
	}
	s.record(ctx, msg)
	return nil
}

func (s *LogSender) record(ctx context.Context, m Message) {
	logger.InfoWithContext(ctx, "Mail delivery disabled, notification dropped").
		String("to", m.To).
		String("subject", m.Subject).
		Int("body_bytes", len(m.Body)).
		Log()
}
