package content

import (
	"context"
	"io"
	"testing"
)

func TestStaticResponseServesConfiguredBody(t *testing.T) {
	src := NewStaticResponse(503, "text/plain", []byte("maintenance"))
	resp, err := src.Execute(context.Background(), &IncomingRequest{Path: "/anything"})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "maintenance" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestDetectContentTypeFallsBackToOctetStream(t *testing.T) {
	if got := DetectContentType("/no/extension/here"); got != "application/octet-stream" {
		t.Fatalf("expected octet-stream fallback, got %q", got)
	}
}

func TestDetectContentTypeKnownExtension(t *testing.T) {
	if got := DetectContentType("/index.html"); got == "application/octet-stream" {
		t.Fatalf("expected a real content type for .html, got fallback")
	}
}

// TestNewStaticResponseDefaultsZeroStatusTo200 guards against a bare
// "static:" proxy_pass_to (parses to StaticProxyPass{}, Status == 0)
// reaching w.WriteHeader(0), which net/http panics on.
func TestNewStaticResponseDefaultsZeroStatusTo200(t *testing.T) {
	src := NewStaticResponse(0, "", nil)
	resp, err := src.Execute(context.Background(), &IncomingRequest{Path: "/"})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected a zero-valued status to default to 200, got %d", resp.StatusCode)
	}
}
