package proxypass

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"my-reverse-proxy/internal/app"
	"my-reverse-proxy/internal/content"
	"my-reverse-proxy/internal/settings"
	"my-reverse-proxy/internal/sshpool"
)

func newTestEngine(t *testing.T, hosts map[string]settings.HostConfiguration) (*Engine, *app.Context) {
	t.Helper()
	cfg := &settings.Configuration{
		ListenPorts:     map[uint16]settings.EndpointType{},
		Hosts:           hosts,
		SslCertificates: map[string]settings.SslCertificate{},
		ClientCertCAs:   map[string]settings.ClientCertificateCa{},
		SshCredentials:  map[string]*settings.SshCredentials{},
		Connections:     settings.DefaultConnectionsSettings(),
	}
	ctx := app.NewContext(cfg, nil)
	return NewEngine(ctx, sshpool.NewPool()), ctx
}

// TestEngineForwardsToHttpUpstream exercises scenario 1 from the spec:
// a plain HTTP request that matches a location forwarding to a remote
// HTTP origin is forwarded and the upstream's response streamed back.
func TestEngineForwardsToHttpUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hello" {
			t.Errorf("expected upstream to see /hello, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hi from upstream"))
	}))
	defer upstream.Close()

	hosts := map[string]settings.HostConfiguration{
		"example.com": {
			Locations: []settings.Location{
				{PathPrefix: "/", ProxyPass: settings.HttpProxyPass{UpstreamURI: upstream.URL}},
			},
		},
	}
	engine, _ := newTestEngine(t, hosts)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/hello", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "hi from upstream" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

// TestEngineStripsHopByHopHeaders exercises spec.md §8 scenario 1's
// "minus hop-by-hop headers" requirement: a response carrying
// Connection/Transfer-Encoding/Keep-Alive must not have them copied
// through to the client, since re-emitting them would conflict with
// net/http's own response framing.
func TestEngineStripsHopByHopHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "Keep-Alive, X-Custom-Hop")
		w.Header().Set("Keep-Alive", "timeout=5")
		w.Header().Set("X-Custom-Hop", "should-be-stripped")
		w.Header().Set("X-Kept", "should-survive")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	hosts := map[string]settings.HostConfiguration{
		"example.com": {
			Locations: []settings.Location{
				{PathPrefix: "/", ProxyPass: settings.HttpProxyPass{UpstreamURI: upstream.URL}},
			},
		},
	}
	engine, _ := newTestEngine(t, hosts)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/hello", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Header().Get("Connection") != "" {
		t.Fatalf("expected Connection to be stripped, got %q", rec.Header().Get("Connection"))
	}
	if rec.Header().Get("Keep-Alive") != "" {
		t.Fatalf("expected Keep-Alive to be stripped, got %q", rec.Header().Get("Keep-Alive"))
	}
	if rec.Header().Get("X-Custom-Hop") != "" {
		t.Fatalf("expected X-Custom-Hop (named by Connection) to be stripped, got %q", rec.Header().Get("X-Custom-Hop"))
	}
	if rec.Header().Get("X-Kept") != "should-survive" {
		t.Fatalf("expected an ordinary header to survive, got %q", rec.Header().Get("X-Kept"))
	}
}

func TestEngineReturns404ForUnknownHost(t *testing.T) {
	engine, _ := newTestEngine(t, map[string]settings.HostConfiguration{})

	req := httptest.NewRequest(http.MethodGet, "http://unknown.example/", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEngineReturns404WhenNoLocationMatches(t *testing.T) {
	hosts := map[string]settings.HostConfiguration{
		"example.com": {
			Locations: []settings.Location{
				{PathPrefix: "/api", ProxyPass: settings.StaticProxyPass{Status: 200}},
			},
		},
	}
	engine, _ := newTestEngine(t, hosts)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/other", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// TestEngineEnforcesAllowList exercises the client-cert allow-list path:
// a request with no authenticated CN attached to its context must be
// rejected for a location that configures allowed_users.
func TestEngineEnforcesAllowList(t *testing.T) {
	hosts := map[string]settings.HostConfiguration{
		"secure.example.com": {
			Locations: []settings.Location{
				{
					PathPrefix:   "/admin",
					ProxyPass:    settings.StaticProxyPass{Status: 200, Body: []byte("ok")},
					AllowedUsers: []string{"trusted-client"},
				},
			},
		},
	}
	engine, _ := newTestEngine(t, hosts)

	req := httptest.NewRequest(http.MethodGet, "http://secure.example.com/admin", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with no client cert, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "http://secure.example.com/admin", nil)
	req2 = req2.WithContext(WithConnInfo(req2.Context(), ConnInfo{ClientCertCN: "trusted-client"}))
	rec2 := httptest.NewRecorder()
	engine.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 with an allowed client cert, got %d", rec2.Code)
	}
}

// TestEngineParsedBareStaticRespondsWithDefaultStatus guards against a
// "static:" location (valid per spec.md §6, parsing to StaticProxyPass{}
// with Status == 0) panicking on w.WriteHeader(0); it must default to 200.
func TestEngineParsedBareStaticRespondsWithDefaultStatus(t *testing.T) {
	pass, err := settings.ParseProxyPassTo("static:")
	if err != nil {
		t.Fatal(err)
	}

	hosts := map[string]settings.HostConfiguration{
		"example.com": {
			Locations: []settings.Location{
				{PathPrefix: "/healthz", ProxyPass: pass},
			},
		},
	}
	engine, _ := newTestEngine(t, hosts)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/healthz", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected a bare static: location to default to 200, got %d", rec.Code)
	}
}

// TestMapErrorSshFileNotFoundUsesLowercaseBody matches spec.md §8
// scenario 4 exactly: an SSH FileError reporting "not found" must
// produce 404 "Not found" (lowercase f), distinct from the "Not Found"
// body used for host/location-match misses.
func TestMapErrorSshFileNotFoundUsesLowercaseBody(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	rec := httptest.NewRecorder()

	fe := &sshpool.FileError{Path: "/missing.html", Err: os.ErrNotExist}
	mapError(rec, log, fe)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Body.String() != "Not found" {
		t.Fatalf("expected body %q, got %q", "Not found", rec.Body.String())
	}
}

func TestMapErrorGenericNotFoundUsesCapitalizedBody(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	rec := httptest.NewRecorder()

	mapError(rec, log, content.ErrNotFound)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Body.String() != "Not Found" {
		t.Fatalf("expected body %q, got %q", "Not Found", rec.Body.String())
	}
}

func TestEngineStaticResponse(t *testing.T) {
	hosts := map[string]settings.HostConfiguration{
		"example.com": {
			Locations: []settings.Location{
				{PathPrefix: "/healthz", ProxyPass: settings.StaticProxyPass{Status: 200, ContentType: "text/plain", Body: []byte("ok")}},
			},
		},
	}
	engine, _ := newTestEngine(t, hosts)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/healthz", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
}
