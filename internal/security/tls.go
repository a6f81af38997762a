package security

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

// TLSConfig holds TLS configuration.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	// CAFile verifies the peer. On a server it enables client certificate checks.
	CAFile            string
	RequireClientAuth bool
	ServerName        string
}

// LoadServerTLSConfig loads server TLS configuration with optional mutual TLS.
func LoadServerTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate and key: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		ClientAuth:   tls.NoClientCert,
	}

	if cfg.CAFile != "" {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.VerifyClientCertIfGiven
		if cfg.RequireClientAuth {
			tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		}
	} else if cfg.RequireClientAuth {
		return nil, errors.New("client authentication requires a CA file")
	}

	return tlsCfg, nil
}

// LoadClientTLSConfig loads client TLS configuration. The client certificate
// is optional; CAFile replaces the system roots when set.
func LoadClientTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS13,
		ServerName: cfg.ServerName,
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate and key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, errors.New("failed to parse CA certificate")
	}
	return pool, nil
}

// VerifyTLSFiles verifies that the given TLS files exist. Empty optional
// paths are skipped; cert and key are always required.
func VerifyTLSFiles(certFile, keyFile string, optional ...string) error {
	for _, file := range []string{certFile, keyFile} {
		if file == "" {
			return errors.New("TLS certificate and key paths must not be empty")
		}
	}
	for _, file := range append([]string{certFile, keyFile}, optional...) {
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("TLS file not found: %s - %w", file, err)
		}
	}
	return nil
}

// ClientIdentity extracts the caller name and granted scopes from a verified
// client certificate: the Common Name names the caller and each
// Organizational Unit of the form "scope:<name>" grants <name>.
func ClientIdentity(clientCert *x509.Certificate) (subject string, scopes []string, err error) {
	if clientCert == nil {
		return "", nil, errors.New("client certificate is nil")
	}

	subject = clientCert.Subject.CommonName
	if subject == "" {
		return "", nil, errors.New("certificate Common Name is empty")
	}

	for _, ou := range clientCert.Subject.OrganizationalUnit {
		if s, ok := strings.CutPrefix(ou, "scope:"); ok && s != "" {
			scopes = append(scopes, s)
		}
	}
	return subject, scopes, nil
}
