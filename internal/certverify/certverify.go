// Package certverify builds the crypto/tls.Config.VerifyPeerCertificate
// callback that checks a presented client certificate against a
// configured CA pool and publishes the extracted common name (or a
// rejection) to the per-handshake rendezvous slot in app.SavedClientCerts.
//
// Grounded on https_server.rs's MyClientCertVerifier /
// saved_client_certs.wait_while_we_read_it rendezvous, reimplemented with
// the spec's REDESIGN FLAG applied: slots are keyed per-handshake (via
// app.Context.NextID), not per-listener server_id, since two concurrent
// handshakes on the same listener would otherwise race on one slot.
package certverify

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"my-reverse-proxy/internal/app"
	"my-reverse-proxy/internal/settings"
)

// BuildServerTLSConfig constructs the tls.Config for an HTTPS/HTTPS2
// listener. When ca is non-nil, client certificates are required and
// verified against ca.Pool; the verified CN (or rejection) is published
// to the slot identified by handshakeID before the handshake completes.
//
// alpnProtocols should be {"h2"} for Https2 endpoints (ALPN pinned so
// the negotiated protocol always matches the listener's declared kind)
// and {"h2","http/1.1","http/1.0"} for Https1.
func BuildServerTLSConfig(cert settings.SslCertificate, ca *settings.ClientCertificateCa, ctx *app.Context, handshakeID int64, alpnProtocols []string) *tls.Config {
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert.Certificate},
		NextProtos:   alpnProtocols,
		MinVersion:   tls.VersionTLS12,
	}

	if ca == nil {
		return cfg
	}

	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	cfg.ClientCAs = ca.Pool
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		leaf, err := verifyChain(rawCerts, ca.Pool)
		if err != nil {
			ctx.SavedClientCerts.Publish(handshakeID, app.CertResult{Rejected: true})
			return err
		}
		cn := app.CommonNameFromCert(leaf)
		ctx.SavedClientCerts.Publish(handshakeID, app.CertResult{CommonName: cn})
		return nil
	}

	return cfg
}

// verifyChain re-validates the raw DER chain against pool and returns the
// leaf certificate. With ClientAuth set to RequireAndVerifyClientCert,
// crypto/tls has already verified the chain against ClientCAs (the same
// pool) before it calls VerifyPeerCertificate, and a chain it rejects
// never reaches the callback; this second pass yields the parsed leaf
// whose CN is published to the rendezvous.
func verifyChain(rawCerts [][]byte, pool *x509.CertPool) (*x509.Certificate, error) {
	if len(rawCerts) == 0 {
		return nil, fmt.Errorf("certverify: no client certificate presented")
	}

	leaf, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return nil, fmt.Errorf("certverify: parsing client certificate: %w", err)
	}

	intermediates := x509.NewCertPool()
	for _, raw := range rawCerts[1:] {
		if c, err := x509.ParseCertificate(raw); err == nil {
			intermediates.AddCert(c)
		}
	}

	opts := x509.VerifyOptions{
		Roots:         pool,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	if _, err := leaf.Verify(opts); err != nil {
		return nil, fmt.Errorf("certverify: chain verification failed: %w", err)
	}
	return leaf, nil
}
