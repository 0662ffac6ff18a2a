package email

import (
	"strings"
)

// Envelope is the addressing and content handed to a provider for one
// message. Address lists are comma-separated header values; empty fields
// are omitted.
type Envelope struct {
	From        string       `json:"from"`
	To          string       `json:"to"`
	Cc          string       `json:"cc,omitempty"`
	Bcc         string       `json:"bcc,omitempty"`
	ReplyTo     string       `json:"replyTo,omitempty"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text,omitempty"`
	HTML        string       `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// BuildEnvelope assembles the envelope for a validated request.
func BuildEnvelope(req *SendRequest) *Envelope {
	c := req.Email

	env := &Envelope{
		From:    formatFrom(c.FromEmail, c.FromName, req.SMTP.Username),
		To:      joinAddresses(c.To),
		Cc:      joinAddresses(c.Cc),
		Bcc:     joinAddresses(c.Bcc),
		ReplyTo: joinAddresses(c.ReplyTo),
		Subject: c.Subject,
		Text:    c.Text,
		HTML:    c.HTML,
	}

	if len(c.Attachments) > 0 {
		env.Attachments = c.Attachments
	}

	return env
}

// formatFrom falls back to the SMTP username when no sender address is given.
func formatFrom(address, name, username string) string {
	if address == "" {
		return username
	}
	if name == "" {
		return address
	}
	return `"` + quoteName(name) + `" <` + address + ">"
}

// quoteName escapes name for an RFC 5322 quoted-string. Line breaks cannot
// appear in a header value and become spaces.
func quoteName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\r', '\n':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func joinAddresses(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return strings.Join(list, ", ")
}
