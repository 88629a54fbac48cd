package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFixture(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".my-reverse-proxy")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCompilesHttpHostWithSshCredentials(t *testing.T) {
	path := writeFixture(t, `
session_key: "a-fixed-session-key"
variables:
  backend_host: "10.0.0.5"
ssh:
  jumpbox:
    host: "${backend_host}"
    port: 22
    user: deploy
    password: "hunter2"
hosts:
  "app.example.com:8080":
    endpoint_type: http
    locations:
      - location: /
        proxy_pass_to: "ssh:${jumpbox}->10.0.0.6:9000"
      - location: /static
        proxy_pass_to: "file:/srv/www"
connections:
  buffer_size: 4096
  remote_connect_timeout: 10s
  request_timeout: 60
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.SessionKey != "a-fixed-session-key" {
		t.Fatalf("unexpected session key %q", cfg.SessionKey)
	}

	creds, ok := cfg.SshCredentials["jumpbox"]
	if !ok {
		t.Fatal("expected jumpbox ssh credentials to be compiled")
	}
	if creds.Host != "10.0.0.5" {
		t.Fatalf("expected ${backend_host} to resolve to 10.0.0.5, got %q", creds.Host)
	}
	if _, ok := creds.Auth.(PasswordAuth); !ok {
		t.Fatalf("expected password auth, got %T", creds.Auth)
	}

	hostConfig, ok := cfg.GetHostConfiguration("app.example.com:8080")
	if !ok {
		t.Fatal("expected app.example.com:8080 to be configured")
	}
	if len(hostConfig.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(hostConfig.Locations))
	}
	// Longest prefix ("/static") must sort before "/".
	if hostConfig.Locations[0].PathPrefix != "/static" {
		t.Fatalf("expected /static to sort first, got %q", hostConfig.Locations[0].PathPrefix)
	}

	sshPP, ok := hostConfig.Locations[1].ProxyPass.(SshProxyPass)
	if !ok {
		t.Fatalf("expected the root location to resolve to an SshProxyPass, got %T", hostConfig.Locations[1].ProxyPass)
	}
	if sshPP.Credentials == nil || sshPP.Credentials.Host != "10.0.0.5" {
		t.Fatal("expected the ssh proxy_pass_to to resolve its credentials reference")
	}

	endpoint, ok := cfg.ListenPorts[8080]
	if !ok {
		t.Fatal("expected port 8080 to be registered")
	}
	if _, ok := endpoint.(Http1Endpoint); !ok {
		t.Fatalf("expected Http1Endpoint, got %T", endpoint)
	}

	if cfg.Connections.BufferSize != 4096 {
		t.Fatalf("expected buffer_size 4096, got %d", cfg.Connections.BufferSize)
	}
	if cfg.Connections.RemoteConnectTimeout.Duration() != 10*time.Second {
		t.Fatalf("expected remote_connect_timeout 10s, got %s", cfg.Connections.RemoteConnectTimeout.Duration())
	}
	if cfg.Connections.RequestTimeout.Duration() != 60*time.Second {
		t.Fatalf("expected request_timeout 60s, got %s", cfg.Connections.RequestTimeout.Duration())
	}
}

func TestLoadRejectsHttpsHostMissingCertificate(t *testing.T) {
	path := writeFixture(t, `
hosts:
  "secure.example.com:8443":
    endpoint_type: https
    locations:
      - location: /
        proxy_pass_to: "static:"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an https endpoint missing ssl_certificate")
	}
}

func TestLoadGeneratesFallbackCertificateWhenSourcesOmitted(t *testing.T) {
	path := writeFixture(t, `
ssl_certificates:
  default:
hosts:
  "secure.example.com:8443":
    endpoint_type: https
    ssl_certificate: default
    locations:
      - location: /
        proxy_pass_to: "static:"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cert, ok := cfg.SslCertificates["default"]
	if !ok {
		t.Fatal("expected a compiled ssl certificate entry")
	}
	if len(cert.Certificate.Certificate) == 0 {
		t.Fatal("expected the fallback certificate to contain DER bytes")
	}
}

func TestLoadRejectsTcpHostWithMultipleLocations(t *testing.T) {
	path := writeFixture(t, `
hosts:
  "relay.example.com:9000":
    endpoint_type: tcp
    locations:
      - location: /
        proxy_pass_to: "tcp://10.0.0.1:9000"
      - location: /other
        proxy_pass_to: "tcp://10.0.0.2:9000"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a tcp endpoint with more than one location")
	}
}
