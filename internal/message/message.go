// Package message renders envelopes as RFC 5322 / MIME messages and parses
// them back.
package message

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/shineum/mailrelay/internal/email"
)

// NewMessageID returns a Message-ID of the form <uuid@domain>, where domain
// is taken from the sender address, or "localhost" if it has none.
func NewMessageID(from string) string {
	domain := "localhost"
	if addr := SenderAddress(from); addr != "" {
		if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
			domain = addr[i+1:]
		}
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// SenderAddress extracts the bare address from a From value such as
// `"Name" <a@b.com>`. Values that do not parse are returned trimmed.
func SenderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(from)
}

// Recipients returns every RCPT TO address of the envelope: to, cc and bcc.
func Recipients(env *email.Envelope) []string {
	var out []string
	for _, list := range []string{env.To, env.Cc, env.Bcc} {
		out = append(out, parseAddressList(list)...)
	}
	return out
}

// parseAddressList splits a comma-separated address list into individual addresses.
func parseAddressList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		// Fall back to simple comma split if RFC 5322 parsing fails
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.Address)
	}
	return result
}
