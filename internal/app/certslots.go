package app

import (
	"crypto/x509"
	"sync"
)

// CertResult is what the Client-Cert Verifier publishes to a handshake's
// slot: either the authenticated common name, or a rejection sentinel
// (Rejected=true, CommonName="").
type CertResult struct {
	CommonName string
	Rejected   bool
}

// SavedClientCerts is the rendezvous registry described in spec.md §3/§9:
// the TLS verifier (running synchronously inside crypto/tls's handshake)
// publishes exactly one CertResult per handshake; the accept loop consumes
// it exactly once. Slots are created per inbound TLS connection and
// destroyed after the paired read.
//
// Per the REDESIGN FLAG in spec.md §9 Open Questions item 1, slots are
// keyed by a fresh id minted per accepted connection (via
// Context.NextID), not by a per-listener server id — the source's
// per-listener keying is racy when two handshakes on the same listener
// are in flight concurrently.
type SavedClientCerts struct {
	slots sync.Map // handshakeID (int64) -> chan CertResult
}

// NewSavedClientCerts constructs an empty registry.
func NewSavedClientCerts() *SavedClientCerts {
	return &SavedClientCerts{}
}

// CreateSlot allocates a fresh, buffered (capacity 1) channel for
// handshakeID. The buffer means a publish never blocks even if the
// accept loop's read arrives first or never arrives (e.g. the connection
// is abandoned before the read).
func (s *SavedClientCerts) CreateSlot(handshakeID int64) chan CertResult {
	ch := make(chan CertResult, 1)
	s.slots.Store(handshakeID, ch)
	return ch
}

// Publish is called by the Client-Cert Verifier once per handshake, with
// either the extracted CN or the rejection sentinel.
func (s *SavedClientCerts) Publish(handshakeID int64, result CertResult) {
	if v, ok := s.slots.Load(handshakeID); ok {
		v.(chan CertResult) <- result
	}
}

// Wait blocks until the slot for handshakeID receives its one value, then
// frees the slot. It must be called at most once per handshakeID.
func (s *SavedClientCerts) Wait(handshakeID int64, ch chan CertResult) CertResult {
	defer s.slots.Delete(handshakeID)
	return <-ch
}

// CommonNameFromCert extracts the Subject CN from a verified leaf
// certificate, used by the Client-Cert Verifier after path validation
// succeeds.
func CommonNameFromCert(leaf *x509.Certificate) string {
	return leaf.Subject.CommonName
}
