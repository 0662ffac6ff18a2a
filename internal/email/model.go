// Package email defines the request, transport and envelope types that flow
// through the relay, and the pure transformations between them.
package email

import (
	"strconv"
	"strings"
)

// Crypto selects the transport security mode of an SMTP session.
type Crypto string

const (
	// CryptoSSL connects with implicit TLS (port 465 semantics).
	CryptoSSL Crypto = "ssl"
	// CryptoTLS connects in cleartext and requires a STARTTLS upgrade
	// before authentication (port 587 semantics).
	CryptoTLS Crypto = "tls"
	// CryptoNone connects in cleartext without an upgrade.
	CryptoNone Crypto = "none"
)

// SendRequest is the payload of a single send call.
type SendRequest struct {
	SMTP  SMTPConfig `json:"smtp"`
	Email Content    `json:"email"`
}

// SMTPConfig holds the caller-supplied SMTP connection parameters.
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     Port   `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Crypto   Crypto `json:"crypto"`
}

// Content holds the message the caller wants to send.
type Content struct {
	FromEmail   string       `json:"fromEmail,omitempty"`
	FromName    string       `json:"fromName,omitempty"`
	To          []string     `json:"to"`
	Cc          []string     `json:"cc,omitempty"`
	Bcc         []string     `json:"bcc,omitempty"`
	ReplyTo     []string     `json:"replyTo,omitempty"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text,omitempty"`
	HTML        string       `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a file attached to a message. Content is base64 text or a
// data URI; it is decoded only when the message is rendered.
type Attachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"contentType,omitempty"`
}

// Port is an SMTP port number. It decodes from a JSON number or a numeric
// string. Any other JSON value decodes to 0 so that validation, not the
// decoder, reports it.
type Port int

// UnmarshalJSON implements json.Unmarshaler.
func (p *Port) UnmarshalJSON(data []byte) error {
	*p = 0

	s := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	*p = Port(n)
	return nil
}
