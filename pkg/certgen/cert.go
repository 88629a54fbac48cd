// Package certgen generates a self-signed TLS certificate for the
// settings layer's ad-hoc HTTPS fallback: an https/https2 endpoint whose
// ssl_certificates entry omits cert_src/key_src gets a generated
// localhost certificate instead of failing to start, matching how the
// teacher bootstrapped a dev certificate for its own TLS listener.
package certgen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"
)

// GeneratePEM returns a freshly generated self-signed certificate and key
// pair, PEM-encoded, valid for "localhost" for one year.
func GeneratePEM() (certPEM, keyPEM []byte, err error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("certgen: generating private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, nil, fmt.Errorf("certgen: generating serial number: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{"my-reverse-proxy"}},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("certgen: creating certificate: %w", err)
	}

	certBuf := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	keyBuf := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	return certBuf, keyBuf, nil
}

// Generate builds a tls.Certificate directly, for callers (the settings
// fallback) that don't need the PEM bytes.
func Generate() (tls.Certificate, error) {
	certPEM, keyPEM, err := GeneratePEM()
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

// GenerateToFiles writes a generated certificate/key pair to certFile and
// keyFile, skipping generation if both already exist. Kept for parity
// with the teacher's file-based bootstrap; nothing in this module calls
// it.
func GenerateToFiles(certFile, keyFile string) error {
	if _, err := os.Stat(certFile); err == nil {
		if _, err := os.Stat(keyFile); err == nil {
			return nil
		}
	}

	certPEM, keyPEM, err := GeneratePEM()
	if err != nil {
		return err
	}

	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		return fmt.Errorf("certgen: writing %s: %w", certFile, err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return fmt.Errorf("certgen: writing %s: %w", keyFile, err)
	}
	return nil
}
