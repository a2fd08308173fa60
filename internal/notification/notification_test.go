package notification

import (
	"context"
	"fmt"
	"testing"

	"github.com/Payphone-Digital/account-security/config"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLinks(t *testing.T) {
	links := Links{BaseURL: "https://app.example.com/"}

	assert.Equal(t, "https://app.example.com/reset-password/abc123", links.ResetPassword("abc123"))
	assert.Equal(t, "https://app.example.com/verify-email/abc123", links.VerifyEmail("abc123"))
}

func TestResetMessage(t *testing.T) {
	msg, err := resetMessage(Links{BaseURL: "http://localhost:3000"}, "bob@x.com", "Bob", "deadbeef")
	require.NoError(t, err)

	assert.Equal(t, "bob@x.com", msg.To)
	assert.Equal(t, "Password reset", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Bob")
	assert.Contains(t, msg.Body, "http://localhost:3000/reset-password/deadbeef")
}

func TestVerificationMessage_NoName(t *testing.T) {
	msg, err := verificationMessage(Links{BaseURL: "http://localhost:3000"}, "bob@x.com", "", "cafe")
	require.NoError(t, err)

	assert.Contains(t, msg.Body, "Hello there")
	assert.Contains(t, msg.Body, "/verify-email/cafe")
}

func TestLogSender_NeverLogsToken(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(nil) })

	sender := NewLogSender("http://localhost:3000")
	const token = "0123456789abcdef0123456789abcdef01234567"

	require.NoError(t, sender.SendPasswordReset(context.Background(), "bob@x.com", "Bob", token))
	require.NoError(t, sender.SendEmailVerification(context.Background(), "bob@x.com", "Bob", token))

	require.Equal(t, 2, logs.Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, token)
		for k, v := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(v), token, "field %s leaked the token", k)
		}
	}
}

func TestNewSMTPSender(t *testing.T) {
	sender, err := NewSMTPSender(config.MailConfig{
		Host:     "localhost",
		Port:     1025,
		From:     "no-reply@localhost",
		Username: "user",
		Password: "pass",
		BaseURL:  "http://localhost:3000",
	})
	require.NoError(t, err)
	assert.Equal(t, "no-reply@localhost", sender.from)
}
