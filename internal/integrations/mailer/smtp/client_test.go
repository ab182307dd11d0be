package smtp

import (
	"bytes"
	"testing"

	"github.com/BearBump/ParcelBox/internal/integrations/mailer"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Host: "smtp.example.com"})
	require.Error(t, err)

	_, err = New(Config{Host: "smtp.example.com", From: "noreply@example.com", TLS: "sometimes"})
	require.Error(t, err)

	c, err := New(Config{Host: "smtp.example.com", Username: "box@example.com", Password: "p"})
	require.NoError(t, err)
	require.Equal(t, "box@example.com", c.from)
}

func TestClient_BuildMessage(t *testing.T) {
	c, err := New(Config{Host: "smtp.example.com", From: "noreply@example.com", TLS: "none"})
	require.NoError(t, err)

	msg, err := c.build(mailer.Message{
		To:      "elira@example.com",
		Subject: "Package information",
		Body:    "You have a package",
		Attachments: []mailer.Attachment{{
			Filename:    "package_TRK1.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.3"),
		}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	require.Contains(t, raw, "elira@example.com")
	require.Contains(t, raw, "Package information")
	require.Contains(t, raw, "package_TRK1.pdf")

	_, err = c.build(mailer.Message{To: "not an address"})
	require.Error(t, err)
}
