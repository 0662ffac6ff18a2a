// Package stdout implements a Provider that prints emails to standard output
// instead of delivering them. It is meant for local development.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/mailrelay/internal/email"
	"github.com/shineum/mailrelay/internal/message"
)

// Provider prints envelopes in a human-readable format.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send prints the envelope and the transport it would have used. No
// connection is opened and the credentials are not printed.
func (p *Provider) Send(ctx context.Context, tc email.TransportConfig, env *email.Envelope) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := message.NewMessageID(env.From)

	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "Via: %s (%s) as %s\n", tc.Addr(), tc.Mode(), tc.Auth.User)
	fmt.Fprintf(&b, "Message-ID: %s\n", messageID)
	fmt.Fprintf(&b, "From: %s\n", env.From)
	fmt.Fprintf(&b, "To: %s\n", env.To)

	if env.Cc != "" {
		fmt.Fprintf(&b, "Cc: %s\n", env.Cc)
	}
	if env.Bcc != "" {
		fmt.Fprintf(&b, "Bcc: %s\n", env.Bcc)
	}
	if env.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\n", env.ReplyTo)
	}

	fmt.Fprintf(&b, "Subject: %s\n", env.Subject)
	b.WriteString("Body:\n")

	body := env.Text
	if body == "" {
		body = env.HTML
	}
	b.WriteString(body + "\n")

	if len(env.Attachments) > 0 {
		attachments := make([]string, 0, len(env.Attachments))
		for _, att := range env.Attachments {
			decoded := message.DecodeAttachment(att)
			attachments = append(attachments, fmt.Sprintf("%s (%s)", decoded.Filename, formatSize(len(decoded.Content))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(attachments, ", "))
	}

	b.WriteString("========================================\n")

	if _, err := fmt.Fprint(p.writer, b.String()); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}

	return messageID, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
