package settings

import "testing"

func TestParseProxyPassToRoundTrip(t *testing.T) {
	cases := []string{
		"http://backend.local:8080",
		"https://backend.local",
		"tcp://10.0.0.5:5432",
		"ssh:${db}->10.0.0.9:5432",
		"ssh:${db}->/var/www/html",
		"ssh:${db}->/var/www/html;default=index.html",
		"file:/srv/static",
		"static:",
	}

	for _, raw := range cases {
		parsed, err := ParseProxyPassTo(raw)
		if err != nil {
			t.Fatalf("ParseProxyPassTo(%q) error: %v", raw, err)
		}
		if got := parsed.String(); got != raw {
			t.Errorf("round trip mismatch: parsed %q, re-stringified as %q", raw, got)
		}
	}
}

func TestParseProxyPassToRejectsUnknownScheme(t *testing.T) {
	if _, err := ParseProxyPassTo("ftp://example.com"); err == nil {
		t.Fatal("expected an error for an unrecognized proxy_pass_to scheme")
	}
}

func TestParseProxyPassToSshFileContentWithoutDefault(t *testing.T) {
	parsed, err := ParseProxyPassTo("ssh:${web}->/opt/app")
	if err != nil {
		t.Fatal(err)
	}
	ssh, ok := parsed.(SshProxyPass)
	if !ok {
		t.Fatalf("expected SshProxyPass, got %T", parsed)
	}
	file, ok := ssh.Remote.(FilePathContent)
	if !ok {
		t.Fatalf("expected FilePathContent, got %T", ssh.Remote)
	}
	if file.Path != "/opt/app" || file.DefaultFile != "" {
		t.Fatalf("unexpected parse result: %+v", file)
	}
}
