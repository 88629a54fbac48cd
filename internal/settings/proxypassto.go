package settings

import (
	"fmt"
	"strconv"
	"strings"
)

// ProxyPassTo is the tagged variant of where a location's traffic goes.
type ProxyPassTo interface {
	proxyPassTo()
	fmt.Stringer
}

// HttpProxyPass forwards to a remote HTTP(S) origin.
type HttpProxyPass struct{ UpstreamURI string }

func (HttpProxyPass) proxyPassTo()      {}
func (p HttpProxyPass) String() string { return p.UpstreamURI }

// TcpProxyPass relays raw TCP to a fixed address.
type TcpProxyPass struct{ Addr string }

func (TcpProxyPass) proxyPassTo()      {}
func (p TcpProxyPass) String() string { return "tcp://" + p.Addr }

// SshRemoteContent is the tagged variant of what an SSH proxy pass fetches.
type SshRemoteContent interface {
	sshRemoteContent()
	fmt.Stringer
}

// RemoteHostContent tunnels a TCP connection to host:port via SSH.
type RemoteHostContent struct {
	Host string
	Port int
}

func (RemoteHostContent) sshRemoteContent() {}
func (r RemoteHostContent) String() string  { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

// FilePathContent downloads a remote file via SFTP/exec.
type FilePathContent struct {
	Path        string
	DefaultFile string // empty when unset
}

func (FilePathContent) sshRemoteContent() {}
func (f FilePathContent) String() string {
	if f.DefaultFile == "" {
		return f.Path
	}
	return f.Path + ";default=" + f.DefaultFile
}

// SshProxyPass forwards via an SSH session, either a TCP tunnel or a file fetch.
type SshProxyPass struct {
	CredentialsID string
	Credentials   *SshCredentials // resolved during Compile
	Remote        SshRemoteContent
}

func (SshProxyPass) proxyPassTo() {}
func (p SshProxyPass) String() string {
	return fmt.Sprintf("ssh:${%s}->%s", p.CredentialsID, p.Remote.String())
}

// LocalPathProxyPass serves static content from the local filesystem.
type LocalPathProxyPass struct{ Path string }

func (LocalPathProxyPass) proxyPassTo()      {}
func (p LocalPathProxyPass) String() string { return "file:" + p.Path }

// StaticProxyPass serves a canned response (admin/debug endpoints).
type StaticProxyPass struct {
	Status      int
	ContentType string
	Body        []byte
}

func (StaticProxyPass) proxyPassTo()      {}
func (StaticProxyPass) String() string { return "static:" }

const sshPrefix = "ssh:"

// ParseProxyPassTo parses one of the config's proxy_pass_to string forms:
//
//	http://…   https://…           -> HttpProxyPass
//	tcp://host:port                -> TcpProxyPass
//	ssh:${id}->host:port           -> SshProxyPass{RemoteHostContent}
//	ssh:${id}->/remote/path[;default=file] -> SshProxyPass{FilePathContent}
//	file:/local/path               -> LocalPathProxyPass
//	static:                        -> StaticProxyPass
func ParseProxyPassTo(raw string) (ProxyPassTo, error) {
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return HttpProxyPass{UpstreamURI: raw}, nil
	case strings.HasPrefix(raw, "tcp://"):
		return TcpProxyPass{Addr: strings.TrimPrefix(raw, "tcp://")}, nil
	case strings.HasPrefix(raw, sshPrefix):
		return parseSshProxyPass(strings.TrimPrefix(raw, sshPrefix))
	case strings.HasPrefix(raw, "file:"):
		return LocalPathProxyPass{Path: strings.TrimPrefix(raw, "file:")}, nil
	case raw == "static:":
		return StaticProxyPass{}, nil
	default:
		return nil, fmt.Errorf("unrecognized proxy_pass_to %q", raw)
	}
}

// parseSshProxyPass parses the portion of a proxy_pass_to string after the
// leading "ssh:" prefix: "${id}->remote".
func parseSshProxyPass(rest string) (ProxyPassTo, error) {
	if !strings.HasPrefix(rest, "${") {
		return nil, fmt.Errorf("ssh proxy_pass_to must start with \"ssh:${id}->\", got %q", rest)
	}
	closeIdx := strings.Index(rest, "}")
	if closeIdx < 0 {
		return nil, fmt.Errorf("ssh proxy_pass_to missing closing '}' in %q", rest)
	}
	id := rest[2:closeIdx]
	remainder := rest[closeIdx+1:]
	remainder = strings.TrimPrefix(remainder, "->")

	if strings.HasPrefix(remainder, "/") {
		path := remainder
		defaultFile := ""
		if semi := strings.Index(remainder, ";default="); semi >= 0 {
			path = remainder[:semi]
			defaultFile = remainder[semi+len(";default="):]
		}
		return SshProxyPass{
			CredentialsID: id,
			Remote:        FilePathContent{Path: path, DefaultFile: defaultFile},
		}, nil
	}

	host, portStr, err := splitHostPort(remainder)
	if err != nil {
		return nil, fmt.Errorf("ssh proxy_pass_to %q: %w", remainder, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("ssh proxy_pass_to %q: invalid port: %w", remainder, err)
	}
	return SshProxyPass{
		CredentialsID: id,
		Remote:        RemoteHostContent{Host: host, Port: port},
	}, nil
}

func splitHostPort(s string) (host, port string, err error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("expected host:port")
	}
	return s[:idx], s[idx+1:], nil
}
