package content

import (
	"net/http"
	"testing"
)

func TestStripHopByHopHeadersRemovesStandardSet(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "close")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Upgrade", "websocket")
	h.Set("X-Request-Id", "abc123")

	StripHopByHopHeaders(h)

	for _, name := range []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade"} {
		if h.Get(name) != "" {
			t.Fatalf("expected %s to be stripped, got %q", name, h.Get(name))
		}
	}
	if h.Get("X-Request-Id") != "abc123" {
		t.Fatal("expected an ordinary header to survive stripping")
	}
}

func TestStripHopByHopHeadersRemovesConnectionNominatedExtras(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "X-Custom-One, X-Custom-Two")
	h.Set("X-Custom-One", "a")
	h.Set("X-Custom-Two", "b")
	h.Set("X-Kept", "c")

	StripHopByHopHeaders(h)

	if h.Get("X-Custom-One") != "" || h.Get("X-Custom-Two") != "" {
		t.Fatal("expected headers named by Connection to be stripped")
	}
	if h.Get("X-Kept") != "c" {
		t.Fatal("expected an unrelated header to survive")
	}
}
