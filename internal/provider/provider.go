// Package provider defines the interface for mail-sending backends.
package provider

import (
	"context"

	"github.com/shineum/mailrelay/internal/email"
)

// Provider is the interface that mail-sending backends must implement.
// A provider performs exactly one delivery attempt per call and holds no
// connection state between calls.
type Provider interface {
	// Send delivers env using the connection parameters in tc and returns
	// the identifier assigned to the message.
	Send(ctx context.Context, tc email.TransportConfig, env *email.Envelope) (string, error)

	// Name returns the human-readable name of this provider.
	Name() string
}
