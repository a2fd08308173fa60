package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/Payphone-Digital/account-security/config"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const smtpTimeout = 30 * time.Second

// SMTPSender delivers tokens by email through an SMTP relay.
type SMTPSender struct {
	client *mail.Client
	from   string
	links  Links
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(smtpTimeout),
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	if cfg.TLS {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}

	logger.GetLogger().Info("SMTP sender configured",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Bool("tls", cfg.TLS),
	)

	return &SMTPSender{client: client, from: cfg.From, links: Links{BaseURL: cfg.BaseURL}}, nil
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, name, token string) error {
	msg, err := resetMessage(s.links, to, name, token)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *SMTPSender) SendEmailVerification(ctx context.Context, to, name, token string) error {
	msg, err := verificationMessage(s.links, to, name, token)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *SMTPSender) send(ctx context.Context, m Message) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		logger.ErrorWithContext(ctx, "Failed to send email").
			String("subject", m.Subject).
			Err(err).
			Log()
		return err
	}

	logger.InfoWithContext(ctx, "Email sent").
		String("subject", m.Subject).
		Log()
	return nil
}
