package mail

import (
	"context"
	"net/smtp"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const resetURL = "http://localhost:8080/reset-password?token=abc"

func TestNewPasswordResetMessage(t *testing.T) {
	msg, err := NewPasswordResetMessage("qa@example.com", resetURL)
	require.NoError(t, err)
	assert.Equal(t, "qa@example.com", msg.To)
	assert.Contains(t, msg.Body, resetURL)
	assert.Equal(t, resetURL, msg.ResetURL)
}

func TestFileOutbox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "outbox.jsonl")
	outbox := NewFileOutbox(path)
	ctx := context.Background()

	msgs, err := outbox.Messages()
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, outbox.SendPasswordReset(ctx, "a@example.com", resetURL+"1"))
	require.NoError(t, outbox.SendPasswordReset(ctx, "b@example.com", resetURL+"2"))
	require.NoError(t, outbox.SendPasswordReset(ctx, "A@example.com", resetURL+"3"))

	msgs, err = outbox.Messages()
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	latest, err := outbox.Latest("a@example.com")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, resetURL+"3", latest.ResetURL)

	none, err := outbox.Latest("nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSMTP_SendPasswordReset(t *testing.T) {
	m := NewSMTP(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "user", Password: "pw", From: "no-reply@example.com"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.SendPasswordReset(context.Background(), "qa@example.com", resetURL))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "no-reply@example.com", gotFrom)
	assert.Equal(t, []string{"qa@example.com"}, gotTo)

	body := string(gotMsg)
	assert.True(t, strings.HasPrefix(body, "To: qa@example.com\r\n"))
	assert.Contains(t, body, "Subject: Reset your SEO Insights password\r\n")
	assert.Contains(t, body, resetURL)
}

func TestLog_SendPasswordReset(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLog(zap.New(core))

	require.NoError(t, m.SendPasswordReset(context.Background(), "qa@example.com", resetURL))
	entries := logs.FilterMessage("password reset mail").All()
	require.Len(t, entries, 1)
	assert.Equal(t, resetURL, entries[0].ContextMap()["reset_url"])
}
