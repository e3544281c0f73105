package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPConfig holds SMTP settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends mail through an SMTP relay.
type SMTP struct {
	config SMTPConfig
	server string
	auth   smtp.Auth
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP creates an SMTP mailer. Authentication is used when a username
// is configured.
func NewSMTP(config SMTPConfig) *SMTP {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &SMTP{
		config: config,
		server: net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		auth:   auth,
		send:   smtp.SendMail,
	}
}

func (s *SMTP) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	msg, err := NewPasswordResetMessage(to, resetURL)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(s.server, s.auth, s.config.From, []string{to}, s.format(msg)); err != nil {
		return fmt.Errorf("send password reset mail: %w", err)
	}
	return nil
}

func (s *SMTP) format(msg *Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
