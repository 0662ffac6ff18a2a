// Package smtp implements a Provider that delivers mail to the caller's SMTP
// server. Every Send opens a fresh session; nothing is pooled.
package smtp

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/shineum/mailrelay/internal/email"
	"github.com/shineum/mailrelay/internal/message"
	relaytls "github.com/shineum/mailrelay/internal/tls"
)

// Config holds the operator-level settings of the SMTP provider. The
// connection parameters themselves come with each request.
type Config struct {
	// HeloName is sent in EHLO. Empty uses the library default.
	HeloName string

	// InsecureSkipVerify disables certificate verification for ssl and tls
	// sessions. Intended for local relays with self-signed certificates.
	InsecureSkipVerify bool

	// RootCAs overrides the system trust store when set.
	RootCAs *x509.CertPool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Provider sends mail over SMTP using emersion/go-smtp.
type Provider struct {
	cfg Config
	now func() time.Time
}

// New creates a new SMTP Provider.
func New(cfg Config) *Provider {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Provider{
		cfg: cfg,
		now: time.Now,
	}
}

// Send connects according to tc, authenticates with AUTH PLAIN and submits
// env as one message. The returned identifier is the Message-ID header of
// the submitted message.
func (p *Provider) Send(ctx context.Context, tc email.TransportConfig, env *email.Envelope) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := message.NewMessageID(env.From)
	raw, err := message.Build(env, messageID, p.now())
	if err != nil {
		return "", fmt.Errorf("failed to build message: %w", err)
	}

	client, err := p.dial(tc)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", tc.Addr(), err)
	}
	defer client.Close()

	if p.cfg.HeloName != "" {
		if err := client.Hello(p.cfg.HeloName); err != nil {
			return "", fmt.Errorf("ehlo: %w", err)
		}
	}

	auth := sasl.NewPlainClient("", tc.Auth.User, tc.Auth.Pass)
	if err := client.Auth(auth); err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}

	from := message.SenderAddress(env.From)
	recipients := message.Recipients(env)
	if err := client.SendMail(from, recipients, bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}

	// The message was accepted; a failed QUIT does not undo that.
	if err := client.Quit(); err != nil {
		p.cfg.Logger.Warn("smtp quit failed after message was accepted",
			"host", tc.Host,
			"message_id", messageID,
			"error", err,
		)
	}

	return messageID, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}

// dial opens the session in the security mode selected by tc:
// implicit TLS, mandatory STARTTLS, or cleartext.
func (p *Provider) dial(tc email.TransportConfig) (*gosmtp.Client, error) {
	addr := tc.Addr()
	tlsConfig := relaytls.ClientConfig(tc.Host, p.cfg.InsecureSkipVerify, p.cfg.RootCAs)

	switch {
	case tc.Secure:
		return gosmtp.DialTLS(addr, tlsConfig)
	case tc.RequireUpgrade:
		return gosmtp.DialStartTLS(addr, tlsConfig)
	default:
		return gosmtp.Dial(addr)
	}
}
