package settings

// Http1Endpoint serves plain HTTP/1.1 on the port.
type Http1Endpoint struct {
	ListenPort uint16
	HostStr    string
	Debug      bool
}

func (Http1Endpoint) endpointType()     {}
func (e Http1Endpoint) Port() uint16 { return e.ListenPort }

// Https1Endpoint serves TLS with ALPN negotiated among h2/http1.1/http1.0.
type Https1Endpoint struct {
	ListenPort  uint16
	HostStr     string
	SslID       string
	ClientCAID  string // empty when no client-cert auth is required
	Debug       bool
}

func (Https1Endpoint) endpointType()     {}
func (e Https1Endpoint) Port() uint16 { return e.ListenPort }

// HasClientAuth reports whether this endpoint requires a verified client cert.
func (e Https1Endpoint) HasClientAuth() bool { return e.ClientCAID != "" }

// Http2Endpoint serves cleartext HTTP/2 (h2c) on the port.
type Http2Endpoint struct {
	ListenPort uint16
	HostStr    string
	Debug      bool
}

func (Http2Endpoint) endpointType()     {}
func (e Http2Endpoint) Port() uint16 { return e.ListenPort }

// Https2Endpoint serves TLS pinned to ALPN "h2" only.
type Https2Endpoint struct {
	ListenPort uint16
	HostStr    string
	SslID      string
	ClientCAID string
	Debug      bool
}

func (Https2Endpoint) endpointType()     {}
func (e Https2Endpoint) Port() uint16 { return e.ListenPort }

// HasClientAuth reports whether this endpoint requires a verified client cert.
func (e Https2Endpoint) HasClientAuth() bool { return e.ClientCAID != "" }

// TcpEndpoint relays raw TCP to a fixed remote address.
type TcpEndpoint struct {
	ListenPort uint16
	RemoteAddr string
}

func (TcpEndpoint) endpointType()     {}
func (e TcpEndpoint) Port() uint16 { return e.ListenPort }

// TcpOverSshEndpoint relays raw TCP through an SSH-forwarded channel.
type TcpOverSshEndpoint struct {
	ListenPort  uint16
	Credentials *SshCredentials
	RemoteHost  string
	RemotePort  int
}

func (TcpOverSshEndpoint) endpointType()     {}
func (e TcpOverSshEndpoint) Port() uint16 { return e.ListenPort }
