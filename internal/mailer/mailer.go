// Package mailer delivers verification codes over SMTP, with a log-only
// fallback for deployments without an outbound mail account.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/canchat/canchat/internal/config"
	"github.com/canchat/canchat/internal/users"
)

// New returns the code sender for the given SMTP config. An empty host
// selects the log sender, which prints codes instead of mailing them.
func New(log *slog.Logger, cfg config.SMTPConfig) (users.CodeSender, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Host == "" {
		return &LogSender{logger: log.With(slog.String("service", "mailer"))}, nil
	}
	return NewSMTPSender(log, cfg)
}

// SMTPSender mails verification codes through an SMTP account.
type SMTPSender struct {
	client *mail.Client
	from   string
	logger *slog.Logger
}

// NewSMTPSender creates a sender over the configured SMTP account.
func NewSMTPSender(log *slog.Logger, cfg config.SMTPConfig) (*SMTPSender, error) {
	if log == nil {
		log = slog.Default()
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{
		client: client,
		from:   cfg.From,
		logger: log.With(slog.String("service", "mailer")),
	}, nil
}

// SendVerificationCode mails the code to the address.
func (s *SMTPSender) SendVerificationCode(ctx context.Context, email, code string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(email); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject("Your verification code")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Your verification code is %s. It expires in 5 minutes.", code))

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	s.logger.Info("verification code sent", slog.String("email", email))
	return nil
}

// LogSender writes verification codes to the log instead of sending mail.
type LogSender struct {
	logger *slog.Logger
}

// SendVerificationCode logs the code.
func (s *LogSender) SendVerificationCode(_ context.Context, email, code string) error {
	s.logger.Info("verification code issued (smtp disabled)",
		slog.String("email", email),
		slog.String("code", code))
	return nil
}
