package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-social/stellar/internal/logging"
)

func TestRenderByKind(t *testing.T) {
	r, err := Render("Stellar", Message{Kind: KindEmailVerification, Code: "123456", ExpiresIn: 10 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "Verify Your Email - Stellar", r.Subject)
	assert.Contains(t, r.HTML, "123456")
	assert.Contains(t, r.HTML, "10 minutes")
	assert.Contains(t, r.Text, "123456")

	r, err = Render("Stellar", Message{Kind: KindDeviceVerification, Code: "654321", ExpiresIn: 10 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "New Device Login - Stellar", r.Subject)
	assert.Contains(t, r.HTML, "new device")
	assert.Contains(t, r.Text, "654321")

	_, err = Render("Stellar", Message{Kind: "password_reset", Code: "1"})
	assert.Error(t, err)
}

func TestRenderEscapesHTML(t *testing.T) {
	r, err := Render("<b>Stellar</b>", Message{Kind: KindEmailVerification, Code: "123456"})
	require.NoError(t, err)
	assert.NotContains(t, r.HTML, "<b>Stellar</b>")
	assert.Contains(t, r.HTML, "&lt;b&gt;Stellar&lt;/b&gt;")
}

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("Stellar", "no-reply@stellar.test", Message{
		Kind:        KindEmailVerification,
		Destination: "ann@x.com",
		Code:        "123456",
		ExpiresIn:   10 * time.Minute,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Verify Your Email - Stellar")
	assert.Contains(t, raw, "<ann@x.com>")
	assert.Contains(t, raw, "no-reply@stellar.test")
	assert.Contains(t, raw, "123456")

	_, err = buildMessage("Stellar", "no-reply@stellar.test", Message{Kind: KindEmailVerification, Destination: "not an address"})
	assert.Error(t, err)
}

func TestLoggerNotifierMasksDestination(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(logging.NewWithWriter(&buf, "info"))

	require.NoError(t, n.Send(context.Background(), Message{Kind: KindDeviceVerification, Destination: "ann@x.com", Code: "123456"}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "a***@x.com", line["destination"])
	assert.Equal(t, "123456", line["code"])

	var nilNotifier *LoggerNotifier
	assert.NoError(t, nilNotifier.Send(context.Background(), Message{}))
}
