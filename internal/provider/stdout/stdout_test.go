package stdout

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailrelay/internal/email"
)

const separator = "========================================\n"

func testTransport() email.TransportConfig {
	return email.DeriveTransport(email.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "user@example.com",
		Password: "hunter2",
		Crypto:   email.CryptoTLS,
	})
}

func TestSend_BasicEmail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	env := &email.Envelope{
		From:    "sender@example.com",
		To:      "alice@example.com, bob@example.com",
		Subject: "Monthly Report",
		Text:    "Please find the report attached.",
	}

	id, err := p.Send(context.Background(), testTransport(), env)
	require.NoError(t, err)
	assert.Regexp(t, `^<.+@example\.com>$`, id)

	output := buf.String()
	assert.Contains(t, output, "Via: smtp.example.com:587 (tls) as user@example.com")
	assert.Contains(t, output, "Message-ID: "+id)
	assert.Contains(t, output, "From: sender@example.com")
	assert.Contains(t, output, "To: alice@example.com, bob@example.com")
	assert.Contains(t, output, "Subject: Monthly Report")
	assert.Contains(t, output, "Please find the report attached.")
	assert.NotContains(t, output, "Attachments:")
	assert.NotContains(t, output, "hunter2")
	assert.True(t, strings.HasPrefix(output, separator))
	assert.True(t, strings.HasSuffix(output, separator))
}

func TestSend_OptionalLists(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	env := &email.Envelope{
		From:    "sender@example.com",
		To:      "alice@example.com",
		Cc:      "carol@example.com",
		Bcc:     "dave@example.com",
		ReplyTo: "replies@example.com",
		Subject: "Lists",
		Text:    "Hello",
	}

	_, err := p.Send(context.Background(), testTransport(), env)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Cc: carol@example.com")
	assert.Contains(t, output, "Bcc: dave@example.com")
	assert.Contains(t, output, "Reply-To: replies@example.com")
}

func TestSend_NoCc(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	env := &email.Envelope{
		From:    "sender@example.com",
		To:      "recipient@example.com",
		Subject: "No CC",
		Text:    "Body",
	}

	_, err := p.Send(context.Background(), testTransport(), env)
	require.NoError(t, err)

	output := buf.String()
	assert.NotContains(t, output, "Cc:")
	assert.NotContains(t, output, "Reply-To:")
}

func TestSend_WithAttachments(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	env := &email.Envelope{
		From:    "sender@example.com",
		To:      "alice@example.com",
		Subject: "Monthly Report",
		Text:    "Please find the report attached.",
		Attachments: []email.Attachment{
			{
				Filename:    "report.pdf",
				ContentType: "application/pdf",
				Content:     base64.StdEncoding.EncodeToString(make([]byte, 1258291)),
			},
			{
				Filename: "summary.csv",
				Content:  base64.StdEncoding.EncodeToString(make([]byte, 46080)),
			},
		},
	}

	_, err := p.Send(context.Background(), testTransport(), env)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Attachments: report.pdf (1.2 MB), summary.csv (45.0 KB)")
}

func TestSend_HTMLBodyFallback(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	env := &email.Envelope{
		From:    "sender@example.com",
		To:      "recipient@example.com",
		Subject: "HTML Only",
		HTML:    "<p>HTML content</p>",
	}

	_, err := p.Send(context.Background(), testTransport(), env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<p>HTML content</p>")
}

func TestSend_CancelledContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Send(ctx, testTransport(), &email.Envelope{From: "a@b.co", To: "c@d.co"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestSend_WriteError(t *testing.T) {
	t.Parallel()

	p := NewWithWriter(failingWriter{})

	_, err := p.Send(context.Background(), testTransport(), &email.Envelope{From: "a@b.co", To: "c@d.co"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "stdout", New().Name())
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bytes int
		want  string
	}{
		{name: "zero bytes", bytes: 0, want: "0 B"},
		{name: "small bytes", bytes: 512, want: "512 B"},
		{name: "kilobytes", bytes: 46080, want: "45.0 KB"},
		{name: "megabytes", bytes: 1258291, want: "1.2 MB"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}
