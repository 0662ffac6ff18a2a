// Package tls provides TLS configuration for the relay's HTTPS listener and
// for outbound SMTP connections.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

const selfSignedValidity = 365 * 24 * time.Hour

// selfSignedHosts are the names a generated certificate is valid for.
var selfSignedHosts = []string{"localhost", "127.0.0.1"}

// GenerateSelfSignedCert returns an in-memory ECDSA P-256 certificate for
// localhost and 127.0.0.1, valid for one year. It signs itself, so a pool
// built from it by CertPool verifies it. Nothing is written to disk.
func GenerateSelfSignedCert() (*tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	tmpl, err := selfSignedTemplate(time.Now(), selfSignedHosts)
	if err != nil {
		return nil, err
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// selfSignedTemplate describes a CA certificate named after hosts[0]. Each
// host becomes an IP or DNS subject alternative name.
func selfSignedTemplate(now time.Time, hosts []string) (*x509.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hosts[0]},
		NotBefore:             now,
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}
	return tmpl, nil
}

// LoadOrGenerateTLS returns the HTTPS listener configuration. The key pair
// comes from certFile and keyFile when both are set, and is generated
// otherwise.
func LoadOrGenerateTLS(certFile, keyFile string) (*tls.Config, error) {
	var (
		cert *tls.Certificate
		err  error
	)
	if certFile != "" && keyFile != "" {
		cert, err = loadKeyPair(certFile, keyFile)
	} else {
		cert, err = GenerateSelfSignedCert()
		if err != nil {
			err = fmt.Errorf("failed to generate self-signed cert: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func loadKeyPair(certFile, keyFile string) (*tls.Certificate, error) {
	files := []struct{ kind, path string }{{"certificate", certFile}, {"key", keyFile}}
	for _, f := range files {
		if _, err := os.Stat(f.path); err != nil {
			return nil, fmt.Errorf("%s file not found: %w", f.kind, err)
		}
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	return &cert, nil
}

// ClientConfig returns the TLS configuration for an outbound connection to
// serverName. A nil rootCAs uses the system pool.
func ClientConfig(serverName string, insecureSkipVerify bool, rootCAs *x509.CertPool) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
		RootCAs:            rootCAs,
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // opt-in for local relays with self-signed certificates
	}
}

// CertPool returns a pool trusting the leaf of cert.
func CertPool(cert *tls.Certificate) (*x509.CertPool, error) {
	if cert == nil || len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("certificate is empty")
	}
	leaf := cert.Leaf
	if leaf == nil {
		var err error
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
	}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return pool, nil
}
