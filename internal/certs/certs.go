// Package certs issues self-signed certificates for serving HTTPS on
// localhost during development.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Validity is how long a generated certificate is valid for.
const Validity = 365 * 24 * time.Hour

// renewBefore regenerates certificates this close to expiry.
const renewBefore = 7 * 24 * time.Hour

// FileManager keeps a localhost certificate and key in a directory.
type FileManager struct {
	fs       afero.Fs
	now      func() time.Time
	certDir  string
	certFile string
	keyFile  string
}

// NewFileManager creates a manager storing its files in certDir on fs.
func NewFileManager(fs afero.Fs, certDir string) *FileManager {
	return &FileManager{
		fs:       fs,
		now:      time.Now,
		certDir:  certDir,
		certFile: filepath.Join(certDir, "localhost.crt"),
		keyFile:  filepath.Join(certDir, "localhost.key"),
	}
}

// NewOSFileManager creates a manager on the real filesystem.
func NewOSFileManager(certDir string) *FileManager {
	return NewFileManager(afero.NewOsFs(), certDir)
}

// GetOrCreateCertificate returns the stored certificate, generating a new
// one when none exists or the stored one is unusable.
func (m *FileManager) GetOrCreateCertificate() (tls.Certificate, error) {
	if cert, err := m.load(); err == nil && m.verifyCertificate(cert) == nil {
		return cert, nil
	}

	// Missing, corrupt and expiring files are all replaced.
	if err := m.removeCertificates(); err != nil {
		return tls.Certificate{}, err
	}
	return m.generateCertificate()
}

// TLSConfig returns a server TLS configuration using the managed certificate.
func (m *FileManager) TLSConfig() (*tls.Config, error) {
	cert, err := m.GetOrCreateCertificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (m *FileManager) load() (tls.Certificate, error) {
	certPEM, err := afero.ReadFile(m.fs, m.certFile)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPEM, err := afero.ReadFile(m.fs, m.keyFile)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

func (m *FileManager) generateCertificate() (tls.Certificate, error) {
	if err := m.fs.MkdirAll(m.certDir, 0700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := m.now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"Ledger Sieve Development"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost", "*.localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to encode private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := afero.WriteFile(m.fs, m.certFile, certPEM, 0600); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := afero.WriteFile(m.fs, m.keyFile, keyPEM, 0600); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to write private key: %w", err)
	}

	return tls.X509KeyPair(certPEM, keyPEM)
}

// verifyCertificate checks that a certificate is current and covers localhost.
func (m *FileManager) verifyCertificate(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("no certificates found")
	}

	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := m.now()
	if now.Before(x509Cert.NotBefore) {
		return fmt.Errorf("certificate not yet valid")
	}
	if now.Add(renewBefore).After(x509Cert.NotAfter) {
		return fmt.Errorf("certificate expires at %s", x509Cert.NotAfter.Format(time.RFC3339))
	}

	if err := x509Cert.VerifyHostname("localhost"); err != nil {
		return fmt.Errorf("certificate not valid for localhost: %w", err)
	}

	return nil
}

func (m *FileManager) removeCertificates() error {
	for _, path := range []string{m.certFile, m.keyFile} {
		if err := m.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
