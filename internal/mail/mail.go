// AngelaMos | 2026
// mail.go

package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/gomail.v2"

	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/metrics"
)

var ErrNoRecipients = errors.New("no recipients")

type Message struct {
	To      []string
	Subject string
	Body    string
	HTML    bool
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.UseTLS {
		d.SSL = true
		d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}

	return &SMTPSender{dialer: d, from: cfg.From}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)

	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	m.SetBody(contentType, msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		metrics.EmailsTotal.WithLabelValues(kindOf(msg), "failed").Inc()
		return fmt.Errorf("send mail to %s: %w", strings.Join(msg.To, ", "), err)
	}

	metrics.EmailsTotal.WithLabelValues(kindOf(msg), "sent").Inc()
	slog.DebugContext(ctx, "mail sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

func kindOf(msg Message) string {
	if msg.HTML {
		return "html"
	}
	return "text"
}

// Outbox records messages instead of delivering them. Used in debug mode
// and tests.
type Outbox struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if o.Err != nil {
		return o.Err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *Outbox) Sent() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.sent...)
}

func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return Message{}, false
	}
	return o.sent[len(o.sent)-1], true
}

// New picks the delivery backend. A mail host of "outbox" keeps messages
// in memory and logs them.
func New(cfg config.MailConfig) Sender {
	if cfg.Host == "outbox" {
		return &loggingOutbox{}
	}
	return NewSMTPSender(cfg)
}

type loggingOutbox struct {
	Outbox
}

func (l *loggingOutbox) Send(ctx context.Context, msg Message) error {
	if err := l.Outbox.Send(ctx, msg); err != nil {
		return err
	}
	slog.InfoContext(ctx, "mail captured",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
