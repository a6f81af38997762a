package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func generateSelfSignedCert(t *testing.T, commonName string) (certFile, keyFile string) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate private key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: commonName,
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}

	tmpDir := t.TempDir()
	certFile = filepath.Join(tmpDir, "test.crt")
	keyFile = filepath.Join(tmpDir, "test.key")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(certFile, certPEM, 0600); err != nil {
		t.Fatalf("Failed to write certificate: %v", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		t.Fatalf("Failed to marshal private key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		t.Fatalf("Failed to write key: %v", err)
	}

	return certFile, keyFile
}

func TestLoadServerTLSConfig(t *testing.T) {
	certFile, keyFile := generateSelfSignedCert(t, "ledger")

	cfg, err := LoadServerTLSConfig(TLSConfig{CertFile: certFile, KeyFile: keyFile})
	if err != nil {
		t.Fatalf("LoadServerTLSConfig failed: %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS13 {
		t.Errorf("expected TLS 1.3 minimum")
	}
	if cfg.ClientAuth != tls.NoClientCert {
		t.Errorf("expected no client auth without a CA, got %v", cfg.ClientAuth)
	}

	cfg, err = LoadServerTLSConfig(TLSConfig{CertFile: certFile, KeyFile: keyFile, CAFile: certFile})
	if err != nil {
		t.Fatalf("LoadServerTLSConfig with CA failed: %v", err)
	}
	if cfg.ClientAuth != tls.VerifyClientCertIfGiven || cfg.ClientCAs == nil {
		t.Errorf("expected optional client verification, got %v", cfg.ClientAuth)
	}

	cfg, err = LoadServerTLSConfig(TLSConfig{CertFile: certFile, KeyFile: keyFile, CAFile: certFile, RequireClientAuth: true})
	if err != nil {
		t.Fatalf("LoadServerTLSConfig with mTLS failed: %v", err)
	}
	if cfg.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("expected required client verification, got %v", cfg.ClientAuth)
	}

	if _, err := LoadServerTLSConfig(TLSConfig{CertFile: certFile, KeyFile: keyFile, RequireClientAuth: true}); err == nil {
		t.Error("mTLS without a CA should fail")
	}
	if _, err := LoadServerTLSConfig(TLSConfig{CertFile: certFile, KeyFile: keyFile, CAFile: keyFile}); err == nil {
		t.Error("a key is not a CA certificate")
	}
}

func TestLoadClientTLSConfig(t *testing.T) {
	certFile, keyFile := generateSelfSignedCert(t, "ledgerctl")

	cfg, err := LoadClientTLSConfig(TLSConfig{CAFile: certFile, ServerName: "localhost"})
	if err != nil {
		t.Fatalf("LoadClientTLSConfig failed: %v", err)
	}
	if cfg.RootCAs == nil || len(cfg.Certificates) != 0 {
		t.Error("expected CA roots and no client certificate")
	}

	cfg, err = LoadClientTLSConfig(TLSConfig{CertFile: certFile, KeyFile: keyFile})
	if err != nil {
		t.Fatalf("LoadClientTLSConfig with certificate failed: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Error("expected a client certificate")
	}

	if _, err := LoadClientTLSConfig(TLSConfig{CertFile: certFile}); err == nil {
		t.Error("a certificate without its key should fail")
	}
}

func TestVerifyTLSFiles(t *testing.T) {
	certFile, keyFile := generateSelfSignedCert(t, "test")

	if err := VerifyTLSFiles(certFile, keyFile); err != nil {
		t.Errorf("VerifyTLSFiles should not fail with existing files: %v", err)
	}
	if err := VerifyTLSFiles(certFile, keyFile, ""); err != nil {
		t.Errorf("empty optional paths are skipped: %v", err)
	}
	if err := VerifyTLSFiles(certFile, keyFile, "/nonexistent/ca.crt"); err == nil {
		t.Error("VerifyTLSFiles should fail with a missing CA")
	}
	if err := VerifyTLSFiles("", ""); err == nil {
		t.Error("VerifyTLSFiles should fail with empty paths")
	}
}

func TestClientIdentity(t *testing.T) {
	cert := &x509.Certificate{
		Subject: pkix.Name{
			CommonName:         "settlement-batch",
			OrganizationalUnit: []string{"scope:ledger:read", "payments", "scope:"},
		},
	}

	subject, scopes, err := ClientIdentity(cert)
	if err != nil {
		t.Fatalf("ClientIdentity failed: %v", err)
	}
	if subject != "settlement-batch" {
		t.Errorf("Expected subject 'settlement-batch', got '%s'", subject)
	}
	if len(scopes) != 1 || scopes[0] != "ledger:read" {
		t.Errorf("unexpected scopes %v", scopes)
	}

	if _, _, err := ClientIdentity(nil); err == nil {
		t.Error("ClientIdentity should fail with nil certificate")
	}
	if _, _, err := ClientIdentity(&x509.Certificate{}); err == nil {
		t.Error("ClientIdentity should fail with empty common name")
	}
}
