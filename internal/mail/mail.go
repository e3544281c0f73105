// Package mail delivers password reset messages.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"
)

// Mailer sends account mails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// Message is a rendered mail.
type Message struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	ResetURL string    `json:"resetUrl,omitempty"`
	SentAt   time.Time `json:"sentAt"`
}

var resetTemplate = template.Must(template.New("reset").Parse(`Hello,

Someone asked to reset the password for your SEO Insights account.
Open the link below to choose a new password:

{{.ResetURL}}

The link can be used once and expires soon. If you did not ask for a
reset you can ignore this mail.
`))

// NewPasswordResetMessage renders the password reset mail.
func NewPasswordResetMessage(to, resetURL string) (*Message, error) {
	var buf bytes.Buffer
	if err := resetTemplate.Execute(&buf, struct{ ResetURL string }{resetURL}); err != nil {
		return nil, fmt.Errorf("render password reset template: %w", err)
	}
	return &Message{
		To:       to,
		Subject:  "Reset your SEO Insights password",
		Body:     buf.String(),
		ResetURL: resetURL,
		SentAt:   time.Now().UTC(),
	}, nil
}
