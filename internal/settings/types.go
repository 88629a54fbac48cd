// Package settings holds the immutable configuration snapshot consumed by
// the rest of the proxy: listen-port to endpoint-type mapping, per-host
// location lists (ordered longest-prefix-first), SSL/CA material, and SSH
// credentials. Nothing here performs I/O beyond Load; everything else is
// pure data plus the queries the engine needs.
package settings

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sort"
	"strings"
)

// ConnectionsSettings bounds buffer sizing and timeouts shared by every
// content source and listener.
type ConnectionsSettings struct {
	BufferSize          int
	RemoteConnectTimeout DurationSeconds
	RequestTimeout       DurationSeconds
}

// EndpointType is the tagged variant describing the protocol stack bound
// to a single listen port. Implementations are in endpoint.go.
type EndpointType interface {
	endpointType()
	Port() uint16
}

// HeaderMutations describes add/remove/override operations applied to the
// outbound request before forwarding. The Proxy Pass Engine does not apply
// them to upstream responses.
type HeaderMutations struct {
	Add      map[string]string
	Remove   []string
	Override map[string]string
}

// IsEmpty reports whether the mutation set has nothing to apply.
func (h HeaderMutations) IsEmpty() bool {
	return len(h.Add) == 0 && len(h.Remove) == 0 && len(h.Override) == 0
}

// Apply mutates header in place.
func (h HeaderMutations) Apply(header map[string][]string) {
	for _, name := range h.Remove {
		delete(header, http1CanonicalKey(name))
	}
	for name, value := range h.Override {
		header[http1CanonicalKey(name)] = []string{value}
	}
	for name, value := range h.Add {
		key := http1CanonicalKey(name)
		header[key] = append(header[key], value)
	}
}

// http1CanonicalKey mimics textproto.CanonicalMIMEHeaderKey without
// depending on net/textproto directly from this package so settings stays
// free of HTTP-layer imports.
func http1CanonicalKey(name string) string {
	parts := strings.Split(strings.ToLower(name), "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}

// Location is a single (path-prefix, proxy target) entry under a host.
type Location struct {
	PathPrefix    string
	ProxyPass     ProxyPassTo
	ModifyHeaders HeaderMutations
	AllowedUsers  []string
}

// RequiresAuth reports whether this location restricts access by client CN.
func (l Location) RequiresAuth() bool {
	return len(l.AllowedUsers) > 0
}

// Allows reports whether cn is present in the location's allow-list.
func (l Location) Allows(cn string) bool {
	for _, u := range l.AllowedUsers {
		if u == cn {
			return true
		}
	}
	return false
}

// HostConfiguration is everything configured under one Host header value.
type HostConfiguration struct {
	Locations     []Location // ordered longest-prefix-first, ties by declaration order
	ModifyHeaders HeaderMutations
	Debug         bool
}

// MatchLocation returns the longest-prefix-matching location for path, or
// false if none of the host's locations match.
func (h HostConfiguration) MatchLocation(path string) (Location, bool) {
	for _, loc := range h.Locations {
		if strings.HasPrefix(path, loc.PathPrefix) {
			return loc, true
		}
	}
	return Location{}, false
}

// sortLocationsLongestPrefixFirst orders locations so longer path prefixes
// are matched before shorter ones, preserving declaration order between
// locations of equal prefix length (stable sort).
func sortLocationsLongestPrefixFirst(locs []Location) {
	sort.SliceStable(locs, func(i, j int) bool {
		return len(locs[i].PathPrefix) > len(locs[j].PathPrefix)
	})
}

// SslCertificate is PEM-parsed chain+key material ready for tls.Config.
type SslCertificate struct {
	ID          string
	Certificate tls.Certificate
}

// ClientCertificateCa is the root pool used to verify a presented client
// certificate chain for a client-auth-enabled endpoint.
type ClientCertificateCa struct {
	ID   string
	Pool *x509.CertPool
}

// AuthMethod is the tagged variant of SSH authentication.
type AuthMethod interface{ authMethod() }

// PasswordAuth authenticates with a plain password.
type PasswordAuth struct{ Password string }

func (PasswordAuth) authMethod() {}

// PrivateKeyAuth authenticates with a key file, optionally passphrase-protected.
type PrivateKeyAuth struct {
	Path       string
	Passphrase string
}

func (PrivateKeyAuth) authMethod() {}

// AgentAuth authenticates via the running ssh-agent (SSH_AUTH_SOCK).
type AgentAuth struct{}

func (AgentAuth) authMethod() {}

// SshCredentials identifies one SSH endpoint + auth method. Session-pool
// keys are derived from this value (see internal/sshpool).
type SshCredentials struct {
	ID   string
	Host string
	Port int
	User string
	Auth AuthMethod
}

// Addr returns "host:port" for dialing.
func (c SshCredentials) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Configuration is the immutable snapshot the rest of the proxy reads.
// Replacing it (see internal/app.Context.Swap) is the only mutation:
// fields are never edited in place once published.
type Configuration struct {
	ListenPorts     map[uint16]EndpointType
	Hosts           map[string]HostConfiguration
	SslCertificates map[string]SslCertificate
	ClientCertCAs   map[string]ClientCertificateCa
	SshCredentials  map[string]*SshCredentials
	Variables       map[string]string
	Connections     ConnectionsSettings

	// SessionKey is the raw session_key from YAML (empty if unset), kept
	// on the compiled snapshot so internal/app can derive the token
	// signing key from it at startup without the caller re-reading YAML.
	SessionKey string
}

// GetListenPorts returns the port -> endpoint-type mapping.
func (c *Configuration) GetListenPorts() map[uint16]EndpointType {
	return c.ListenPorts
}

// GetHostConfiguration returns the configuration for host, if any.
// Hosts are keyed as declared ("name:port"), so host is looked up as given
// first and then with any port stripped.
func (c *Configuration) GetHostConfiguration(host string) (HostConfiguration, bool) {
	if hc, ok := c.Hosts[host]; ok {
		return hc, true
	}
	hc, ok := c.Hosts[stripPort(host)]
	return hc, ok
}

// GetSslCertificate looks up SSL material by configured id.
func (c *Configuration) GetSslCertificate(id string) (SslCertificate, bool) {
	cert, ok := c.SslCertificates[id]
	return cert, ok
}

// GetClientCertificateCa looks up CA material by configured id.
func (c *Configuration) GetClientCertificateCa(id string) (ClientCertificateCa, bool) {
	ca, ok := c.ClientCertCAs[id]
	return ca, ok
}

// GetHttpEndpointModifyHeadersSettings returns the per-host header
// mutation settings, or a zero value if host is unknown.
func (c *Configuration) GetHttpEndpointModifyHeadersSettings(host string) HeaderMutations {
	hc, ok := c.GetHostConfiguration(host)
	if !ok {
		return HeaderMutations{}
	}
	return hc.ModifyHeaders
}

func stripPort(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
