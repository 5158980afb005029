package notify

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/rehanbawakhan/vdetection/internal/config"
)

func testSMTPConfig() config.SMTPConfig {
	return config.SMTPConfig{
		Host:    "smtp.example.com",
		Port:    587,
		User:    "bot@example.com",
		Pass:    "secret",
		To:      "guard@example.com, chief@example.com",
		From:    "bot@example.com",
		Enabled: true,
	}
}

func TestEmailProvider_ValidateConfig(t *testing.T) {
	email, _ := testTemplates(t)

	p := NewEmailProvider(config.SMTPConfig{}, email)
	assert.False(t, p.IsEnabled())
	assert.ErrorIs(t, p.ValidateConfig(), ErrDisabled)

	cfg := testSMTPConfig()
	cfg.To = ""
	assert.Error(t, NewEmailProvider(cfg, email).ValidateConfig())

	p = NewEmailProvider(testSMTPConfig(), email)
	assert.NoError(t, p.ValidateConfig())
	assert.True(t, p.Background())
}

func TestEmailProvider_Message(t *testing.T) {
	email, _ := testTemplates(t)
	p := NewEmailProvider(testSMTPConfig(), email)

	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0}
	at := time.UnixMilli(1700000000123)
	e := NewEvent("Mallory", "wanted_match", "wanted", ptr(0.9), "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(jpeg), at)

	msg, err := p.Message(e)
	require.NoError(t, err)

	assert.Equal(t, []string{"WANTED ALERT: Mallory Detected!"}, msg.GetGenHeader(mail.HeaderSubject))
	from := msg.GetAddrHeaderString(mail.HeaderFrom)
	require.Len(t, from, 1)
	assert.Contains(t, from[0], "FaceWatch Security")
	assert.Contains(t, from[0], "bot@example.com")
	assert.Len(t, msg.GetAddrHeaderString(mail.HeaderTo), 2)

	attachments := msg.GetAttachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "detection-1700000000123.jpg", attachments[0].Name)
}

func TestEmailProvider_MessageWithoutImage(t *testing.T) {
	email, _ := testTemplates(t)
	p := NewEmailProvider(testSMTPConfig(), email)

	msg, err := p.Message(NewEvent("Unknown", "unknown_face", "unknown", nil, "", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Security Alert: Unknown Person Detected"}, msg.GetGenHeader(mail.HeaderSubject))
	assert.Empty(t, msg.GetAttachments())
}

func TestEmailProvider_InvalidSnapshot(t *testing.T) {
	email, _ := testTemplates(t)
	p := NewEmailProvider(testSMTPConfig(), email)

	msg, err := p.Message(NewEvent("Alice", "wanted_match", "wanted", nil, "not-a-data-url", time.Now()))
	require.NoError(t, err)
	assert.Empty(t, msg.GetAttachments())
}

func TestEmailProvider_SendUsesDialer(t *testing.T) {
	email, _ := testTemplates(t)
	p := NewEmailProvider(testSMTPConfig(), email)

	var sent *mail.Msg
	p.dial = func(_ context.Context, msg *mail.Msg) error {
		sent = msg
		return nil
	}

	require.NoError(t, p.Send(context.Background(), NewEvent("Alice", "wanted_match", "wanted", nil, "", time.Now())))
	require.NotNil(t, sent)
	assert.Equal(t, []string{"WANTED ALERT: Alice Detected!"}, sent.GetGenHeader(mail.HeaderSubject))
}
