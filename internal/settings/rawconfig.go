package settings

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"my-reverse-proxy/pkg/certgen"
)

// RawConfig is the literal YAML shape of ".my-reverse-proxy".
type RawConfig struct {
	Hosts              map[string]RawHost       `yaml:"hosts"`
	SslCertificates    map[string]RawSslCert    `yaml:"ssl_certificates"`
	ClientCertificateCa map[string]RawClientCa  `yaml:"client_certificate_ca"`
	Ssh                map[string]RawSsh        `yaml:"ssh"`
	Variables          map[string]string        `yaml:"variables"`
	SessionKey         string                   `yaml:"session_key"`
	Connections        RawConnections           `yaml:"connections"`
}

// RawConnections mirrors ConnectionsSettings in YAML form.
type RawConnections struct {
	BufferSize           int             `yaml:"buffer_size"`
	RemoteConnectTimeout DurationSeconds `yaml:"remote_connect_timeout"`
	RequestTimeout       DurationSeconds `yaml:"request_timeout"`
}

// RawHost is one entry under "hosts".
type RawHost struct {
	EndpointType        string               `yaml:"endpoint_type"`
	SslCertificate       string               `yaml:"ssl_certificate"`
	ClientCertificateCa  string               `yaml:"client_certificate_ca"`
	Locations            []RawLocation        `yaml:"locations"`
	ModifyHttpHeaders    *RawHeaderMutations   `yaml:"modify_http_headers"`
	Debug                bool                 `yaml:"debug"`
}

// RawLocation is one entry under a host's "locations".
type RawLocation struct {
	Location      string             `yaml:"location"`
	ProxyPassTo   string             `yaml:"proxy_pass_to"`
	ModifyHeaders *RawHeaderMutations `yaml:"modify_headers"`
	AllowedUsers  []string           `yaml:"allowed_users"`
}

// RawHeaderMutations is the YAML form of HeaderMutations.
type RawHeaderMutations struct {
	Add      map[string]string `yaml:"add"`
	Remove   []string          `yaml:"remove"`
	Override map[string]string `yaml:"override"`
}

func (r *RawHeaderMutations) compile() HeaderMutations {
	if r == nil {
		return HeaderMutations{}
	}
	return HeaderMutations{Add: r.Add, Remove: r.Remove, Override: r.Override}
}

// RawSslCert is one entry under "ssl_certificates".
type RawSslCert struct {
	CertSrc string `yaml:"cert_src"`
	KeySrc  string `yaml:"key_src"`
}

// RawClientCa is one entry under "client_certificate_ca".
type RawClientCa struct {
	CertSrc string `yaml:"cert_src"`
}

// RawSsh is one entry under "ssh".
type RawSsh struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	PrivateKeyFile  string `yaml:"private_key_file"`
	Passphrase      string `yaml:"passphrase"`
	Agent           bool   `yaml:"agent"`
}

func (r RawSsh) compile(id string) (*SshCredentials, error) {
	var auth AuthMethod
	switch {
	case r.Agent:
		auth = AgentAuth{}
	case r.PrivateKeyFile != "":
		auth = PrivateKeyAuth{Path: r.PrivateKeyFile, Passphrase: r.Passphrase}
	case r.Password != "":
		auth = PasswordAuth{Password: r.Password}
	default:
		return nil, fmt.Errorf("ssh %q: must configure one of password, private_key_file, or agent", id)
	}
	port := r.Port
	if port == 0 {
		port = 22
	}
	return &SshCredentials{ID: id, Host: r.Host, Port: port, User: r.User, Auth: auth}, nil
}

// resolveVariables substitutes "${name}" occurrences of vars within s.
func resolveVariables(s string, vars map[string]string) string {
	for name, value := range vars {
		s = strings.ReplaceAll(s, "${"+name+"}", value)
	}
	return s
}

// Compile validates and transforms a RawConfig into an immutable Configuration.
func (raw *RawConfig) Compile() (*Configuration, error) {
	sshCreds := make(map[string]*SshCredentials, len(raw.Ssh))
	for id, rawSsh := range raw.Ssh {
		rawSsh.Host = resolveVariables(rawSsh.Host, raw.Variables)
		creds, err := rawSsh.compile(id)
		if err != nil {
			return nil, err
		}
		sshCreds[id] = creds
	}

	sslCerts := make(map[string]SslCertificate, len(raw.SslCertificates))
	for id, rawCert := range raw.SslCertificates {
		cert, err := loadSslCertificate(id, rawCert)
		if err != nil {
			return nil, err
		}
		sslCerts[id] = cert
	}

	clientCas := make(map[string]ClientCertificateCa, len(raw.ClientCertificateCa))
	for id, rawCa := range raw.ClientCertificateCa {
		pool, err := loadClientCaPool(rawCa)
		if err != nil {
			return nil, fmt.Errorf("client_certificate_ca %q: %w", id, err)
		}
		clientCas[id] = ClientCertificateCa{ID: id, Pool: pool}
	}

	hosts := make(map[string]HostConfiguration, len(raw.Hosts))
	listenPorts := make(map[uint16]EndpointType)

	for hostName, rawHost := range raw.Hosts {
		locations := make([]Location, 0, len(rawHost.Locations))
		for _, rl := range rawHost.Locations {
			ppt, err := ParseProxyPassTo(resolveVariables(rl.ProxyPassTo, raw.Variables))
			if err != nil {
				return nil, fmt.Errorf("host %q location %q: %w", hostName, rl.Location, err)
			}
			if sshPP, ok := ppt.(SshProxyPass); ok {
				creds, ok := sshCreds[sshPP.CredentialsID]
				if !ok {
					return nil, fmt.Errorf("host %q location %q: unknown ssh credentials id %q", hostName, rl.Location, sshPP.CredentialsID)
				}
				sshPP.Credentials = creds
				ppt = sshPP
			}
			locations = append(locations, Location{
				PathPrefix:    rl.Location,
				ProxyPass:     ppt,
				ModifyHeaders: rl.ModifyHeaders.compile(),
				AllowedUsers:  rl.AllowedUsers,
			})
		}
		sortLocationsLongestPrefixFirst(locations)

		hostConfig := HostConfiguration{
			Locations:     locations,
			ModifyHeaders: rawHost.ModifyHttpHeaders.compile(),
			Debug:         rawHost.Debug,
		}
		hosts[hostName] = hostConfig

		endpoint, port, err := buildEndpointType(hostName, rawHost, hostConfig)
		if err != nil {
			return nil, err
		}
		if existing, ok := listenPorts[port]; ok {
			if !sameEndpointKind(existing, endpoint) {
				return nil, fmt.Errorf("port %d: host %q disagrees on endpoint type with an earlier host", port, hostName)
			}
			continue
		}
		listenPorts[port] = endpoint
	}

	connections := DefaultConnectionsSettings()
	if raw.Connections.BufferSize > 0 {
		connections.BufferSize = raw.Connections.BufferSize
	}
	if raw.Connections.RemoteConnectTimeout > 0 {
		connections.RemoteConnectTimeout = raw.Connections.RemoteConnectTimeout
	}
	if raw.Connections.RequestTimeout > 0 {
		connections.RequestTimeout = raw.Connections.RequestTimeout
	}

	return &Configuration{
		ListenPorts:     listenPorts,
		Hosts:           hosts,
		SslCertificates: sslCerts,
		ClientCertCAs:   clientCas,
		SshCredentials:  sshCreds,
		Variables:       raw.Variables,
		Connections:     connections,
		SessionKey:      raw.SessionKey,
	}, nil
}

// buildEndpointType implements the token -> EndpointType dispatch from
// spec.md §4.2 / §6, mirroring original_source's end_point_settings.rs.
func buildEndpointType(hostName string, rawHost RawHost, hostConfig HostConfiguration) (EndpointType, uint16, error) {
	port, err := parseHostPort(hostName)
	if err != nil {
		return nil, 0, err
	}

	switch rawHost.EndpointType {
	case "http":
		return Http1Endpoint{ListenPort: port, HostStr: hostName, Debug: rawHost.Debug}, port, nil
	case "https":
		if rawHost.SslCertificate == "" {
			return nil, 0, fmt.Errorf("host %q: https endpoint requires ssl_certificate", hostName)
		}
		return Https1Endpoint{
			ListenPort: port, HostStr: hostName,
			SslID: rawHost.SslCertificate, ClientCAID: rawHost.ClientCertificateCa,
			Debug: rawHost.Debug,
		}, port, nil
	case "https2":
		if rawHost.SslCertificate == "" {
			return nil, 0, fmt.Errorf("host %q: https2 endpoint requires ssl_certificate", hostName)
		}
		return Https2Endpoint{
			ListenPort: port, HostStr: hostName,
			SslID: rawHost.SslCertificate, ClientCAID: rawHost.ClientCertificateCa,
			Debug: rawHost.Debug,
		}, port, nil
	case "http2":
		return Http2Endpoint{ListenPort: port, HostStr: hostName, Debug: rawHost.Debug}, port, nil
	case "tcp":
		if len(hostConfig.Locations) != 1 {
			return nil, 0, fmt.Errorf("host %q: tcp endpoint must have exactly 1 location, has %d", hostName, len(hostConfig.Locations))
		}
		return buildTcpEndpoint(hostName, port, hostConfig.Locations[0])
	default:
		return nil, 0, fmt.Errorf("host %q: unknown endpoint_type %q", hostName, rawHost.EndpointType)
	}
}

func buildTcpEndpoint(hostName string, port uint16, loc Location) (EndpointType, uint16, error) {
	switch pp := loc.ProxyPass.(type) {
	case TcpProxyPass:
		return TcpEndpoint{ListenPort: port, RemoteAddr: pp.Addr}, port, nil
	case SshProxyPass:
		remoteHost, ok := pp.Remote.(RemoteHostContent)
		if !ok {
			return nil, 0, fmt.Errorf("host %q: tcp endpoint's ssh proxy_pass_to must target a remote host, not a file path", hostName)
		}
		return TcpOverSshEndpoint{
			ListenPort: port, Credentials: pp.Credentials,
			RemoteHost: remoteHost.Host, RemotePort: remoteHost.Port,
		}, port, nil
	case HttpProxyPass:
		return nil, 0, fmt.Errorf("host %q: it is not possible to serve remote http content over a tcp endpoint", hostName)
	case StaticProxyPass:
		return nil, 0, fmt.Errorf("host %q: it is not possible to serve static content over a tcp endpoint", hostName)
	case LocalPathProxyPass:
		return nil, 0, fmt.Errorf("host %q: it is not possible to serve local path content over a tcp endpoint", hostName)
	default:
		return nil, 0, fmt.Errorf("host %q: unsupported proxy_pass_to for tcp endpoint", hostName)
	}
}

func sameEndpointKind(a, b EndpointType) bool {
	switch a.(type) {
	case Http1Endpoint:
		_, ok := b.(Http1Endpoint)
		return ok
	case Https1Endpoint:
		_, ok := b.(Https1Endpoint)
		return ok
	case Http2Endpoint:
		_, ok := b.(Http2Endpoint)
		return ok
	case Https2Endpoint:
		_, ok := b.(Https2Endpoint)
		return ok
	case TcpEndpoint:
		_, ok := b.(TcpEndpoint)
		return ok
	case TcpOverSshEndpoint:
		_, ok := b.(TcpOverSshEndpoint)
		return ok
	default:
		return false
	}
}

// parseHostPort extracts the numeric port from a "host:port" config key.
// Host-only keys (no port) are rejected: every host must declare the port
// it listens on so ports can be grouped by endpoint type.
func parseHostPort(hostName string) (uint16, error) {
	idx := strings.LastIndex(hostName, ":")
	if idx < 0 {
		return 0, fmt.Errorf("host %q: must be declared as \"name:port\"", hostName)
	}
	var port int
	if _, err := fmt.Sscanf(hostName[idx+1:], "%d", &port); err != nil {
		return 0, fmt.Errorf("host %q: invalid port: %w", hostName, err)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("host %q: port out of range", hostName)
	}
	return uint16(port), nil
}

// loadSslCertificate reads cert_src/key_src from disk. An entry that
// configures neither gets a generated self-signed localhost certificate
// instead of a hard failure, so a bare "https:" endpoint with no material
// on hand still comes up -- useful for local development and for this
// package's own tests.
func loadSslCertificate(id string, raw RawSslCert) (SslCertificate, error) {
	if raw.CertSrc == "" && raw.KeySrc == "" {
		cert, err := certgen.Generate()
		if err != nil {
			return SslCertificate{}, fmt.Errorf("ssl_certificates %q: generating fallback certificate: %w", id, err)
		}
		return SslCertificate{ID: id, Certificate: cert}, nil
	}

	certPEM, err := readSource(raw.CertSrc)
	if err != nil {
		return SslCertificate{}, fmt.Errorf("ssl_certificates %q: cert_src: %w", id, err)
	}
	keyPEM, err := readSource(raw.KeySrc)
	if err != nil {
		return SslCertificate{}, fmt.Errorf("ssl_certificates %q: key_src: %w", id, err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return SslCertificate{}, fmt.Errorf("ssl_certificates %q: %w", id, err)
	}
	return SslCertificate{ID: id, Certificate: cert}, nil
}

func loadClientCaPool(raw RawClientCa) (*x509.CertPool, error) {
	pem, err := readSource(raw.CertSrc)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in cert_src")
	}
	return pool, nil
}

// readSource reads cert/key material from a filesystem path.
func readSource(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("empty source path")
	}
	return os.ReadFile(path)
}
