package email

import (
	"log/slog"
	"net"
	"strconv"
)

// TransportConfig is the connection-level configuration of one SMTP session.
type TransportConfig struct {
	Host string
	Port int

	// Secure means the connection is encrypted from the first byte.
	Secure bool

	// RequireUpgrade means the session must be upgraded with STARTTLS
	// before authenticating. Ignored when Secure is set.
	RequireUpgrade bool

	Auth Auth
}

// Auth holds SMTP credentials.
type Auth struct {
	User string
	Pass string
}

// DeriveTransport maps the caller's SMTP settings to a transport config.
//
//	ssl  -> Secure
//	tls  -> cleartext + RequireUpgrade
//	none -> cleartext, no upgrade
func DeriveTransport(cfg SMTPConfig) TransportConfig {
	tc := TransportConfig{
		Host: cfg.Host,
		Port: int(cfg.Port),
		Auth: Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		},
	}

	switch cfg.Crypto {
	case CryptoSSL:
		tc.Secure = true
	case CryptoTLS:
		tc.RequireUpgrade = true
	}

	return tc
}

// Addr returns the host:port dial address.
func (t TransportConfig) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Mode returns the crypto mode the config was derived from.
func (t TransportConfig) Mode() Crypto {
	switch {
	case t.Secure:
		return CryptoSSL
	case t.RequireUpgrade:
		return CryptoTLS
	default:
		return CryptoNone
	}
}

// LogValue implements slog.LogValuer. The password is never logged.
func (t TransportConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", t.Host),
		slog.Int("port", t.Port),
		slog.String("crypto", string(t.Mode())),
		slog.String("user", t.Auth.User),
	)
}
