package certs

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1, "should have one certificate")
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return x509Cert
}

func TestFileManager_GetOrCreateCertificate(t *testing.T) {
	tests := []struct {
		setup func(t *testing.T, fs afero.Fs, m *FileManager)
		check func(t *testing.T, fs afero.Fs, first, second *x509.Certificate)
		name  string
	}{
		{
			name: "creates new certificate when none exists",
			check: func(t *testing.T, fs afero.Fs, first, _ *x509.Certificate) {
				t.Helper()
				assert.Equal(t, "Ledger Sieve Development", first.Subject.Organization[0])
				assert.NoError(t, first.VerifyHostname("localhost"))

				exists, err := afero.Exists(fs, "/certs/localhost.key")
				require.NoError(t, err)
				assert.True(t, exists)
			},
		},
		{
			name: "reuses existing valid certificate",
			setup: func(t *testing.T, _ afero.Fs, m *FileManager) {
				t.Helper()
				_, err := m.GetOrCreateCertificate()
				require.NoError(t, err)
			},
			check: func(t *testing.T, _ afero.Fs, first, second *x509.Certificate) {
				t.Helper()
				assert.Equal(t, first.SerialNumber, second.SerialNumber)
			},
		},
		{
			name: "regenerates corrupt files",
			setup: func(t *testing.T, fs afero.Fs, _ *FileManager) {
				t.Helper()
				require.NoError(t, afero.WriteFile(fs, "/certs/localhost.crt", []byte("not a cert"), 0600))
				require.NoError(t, afero.WriteFile(fs, "/certs/localhost.key", []byte("not a key"), 0600))
			},
			check: func(t *testing.T, _ afero.Fs, first, _ *x509.Certificate) {
				t.Helper()
				assert.NoError(t, first.VerifyHostname("localhost"))
			},
		},
		{
			name: "regenerates a certificate close to expiry",
			setup: func(t *testing.T, _ afero.Fs, m *FileManager) {
				t.Helper()
				m.now = func() time.Time { return time.Now().Add(-Validity + 24*time.Hour) }
				_, err := m.GetOrCreateCertificate()
				require.NoError(t, err)
				m.now = time.Now
			},
			check: func(t *testing.T, _ afero.Fs, first, second *x509.Certificate) {
				t.Helper()
				assert.Equal(t, first.SerialNumber, second.SerialNumber, "second call reuses the fresh certificate")
				assert.True(t, first.NotAfter.After(time.Now().Add(Validity-time.Hour)))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			m := NewFileManager(fs, "/certs")
			if tt.setup != nil {
				tt.setup(t, fs, m)
			}

			first, err := m.GetOrCreateCertificate()
			require.NoError(t, err)
			second, err := m.GetOrCreateCertificate()
			require.NoError(t, err)

			tt.check(t, fs, leaf(t, first), leaf(t, second))
		})
	}
}

func TestFileManager_verifyCertificate(t *testing.T) {
	m := NewFileManager(afero.NewMemMapFs(), "/certs")

	assert.Error(t, m.verifyCertificate(tls.Certificate{}), "empty chain")
	assert.Error(t, m.verifyCertificate(tls.Certificate{Certificate: [][]byte{{1, 2, 3}}}), "garbage DER")

	cert, err := m.GetOrCreateCertificate()
	require.NoError(t, err)
	assert.NoError(t, m.verifyCertificate(cert))

	m.now = func() time.Time { return time.Now().Add(Validity) }
	assert.ErrorContains(t, m.verifyCertificate(cert), "expires")
}

func TestCertificateProperties(t *testing.T) {
	m := NewFileManager(afero.NewMemMapFs(), "/certs")
	cert, err := m.GetOrCreateCertificate()
	require.NoError(t, err)
	x509Cert := leaf(t, cert)

	t.Run("key usage", func(t *testing.T) {
		assert.Equal(t, x509.KeyUsageDigitalSignature, x509Cert.KeyUsage)
		assert.Equal(t, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, x509Cert.ExtKeyUsage)
	})

	t.Run("DNS names", func(t *testing.T) {
		assert.Contains(t, x509Cert.DNSNames, "localhost")
		assert.Contains(t, x509Cert.DNSNames, "*.localhost")
	})

	t.Run("IP addresses", func(t *testing.T) {
		var hasIPv4, hasIPv6 bool
		for _, ip := range x509Cert.IPAddresses {
			hasIPv4 = hasIPv4 || ip.Equal(net.IPv4(127, 0, 0, 1))
			hasIPv6 = hasIPv6 || ip.Equal(net.IPv6loopback)
		}
		assert.True(t, hasIPv4, "certificate should include IPv4 loopback")
		assert.True(t, hasIPv6, "certificate should include IPv6 loopback")
	})

	t.Run("TLS config", func(t *testing.T) {
		cfg, err := m.TLSConfig()
		require.NoError(t, err)
		require.Len(t, cfg.Certificates, 1)
		assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	})
}
