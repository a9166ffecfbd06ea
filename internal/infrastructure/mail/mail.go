// Package mail sends outbound email over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/taxcrm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// ErrNoRecipients is returned for a message without recipients
var ErrNoRecipients = errors.New("message has no recipients")

// Attachment is an in-memory file attached to a message
type Attachment struct {
	Filename string
	Data     []byte
}

// Message is one outbound email
type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var htmlTag = regexp.MustCompile("<[^>]+>")

// SMTPSender delivers mail through an SMTP relay
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewSMTPSender creates an SMTPSender
func NewSMTPSender(cfg config.MailConfig, l *zap.Logger) *SMTPSender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	return &SMTPSender{dialer: dialer, from: cfg.From, logger: l.Named("mail")}
}

// Send builds and delivers msg
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMessage(s.from, msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Info("Email sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func buildMessage(from string, msg Message) (*gomail.Message, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}
	m := gomail.NewMessage(
		gomail.SetCharset("UTF-8"),
		gomail.SetEncoding(gomail.Base64),
	)
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if htmlTag.MatchString(msg.Body) {
		m.SetBody("text/html", msg.Body)
	} else {
		m.SetBody("text/plain", msg.Body)
	}
	for _, a := range msg.Attachments {
		data := a.Data
		m.Attach(a.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}
	return m, nil
}

// LogSender logs messages instead of sending them. Used when mail is disabled.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(l *zap.Logger) *LogSender {
	return &LogSender{logger: l.Named("mail")}
}

// Send logs the message
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	s.logger.Info("Email delivery disabled, message dropped",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}

// MemorySender records messages. Used in tests.
type MemorySender struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

// Send records msg or returns Err
func (s *MemorySender) Send(ctx context.Context, msg Message) error {
	if s.Err != nil {
		return s.Err
	}
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages
func (s *MemorySender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

// NewSender returns an SMTPSender when mail is enabled, otherwise a LogSender
func NewSender(cfg config.MailConfig, l *zap.Logger) Sender {
	if cfg.Enabled && cfg.Host != "" {
		return NewSMTPSender(cfg, l)
	}
	return NewLogSender(l)
}
