package content

import (
	"context"
	"fmt"

	"my-reverse-proxy/internal/settings"
	"my-reverse-proxy/internal/sshpool"
)

// Source is the common shape of every content source that answers an
// HTTP-style request/response exchange. Tcp/TcpOverSsh proxy_pass_to
// values never produce a Source -- they're handled directly by the
// Listener Fabric via content.TcpRelay/TcpOverSshRelay since a raw TCP
// endpoint has no request/response cycle to execute.
type Source interface {
	Execute(ctx context.Context, req *IncomingRequest) (*Response, error)
}

// NewSource builds the Source for a location's proxy_pass_to, given the
// connection settings fixed for the process lifetime and the shared SSH
// session pool. It returns an error for proxy_pass_to values that don't
// have an HTTP-shaped source (Tcp/SshProxyPass-to-RemoteHostContent used
// as the sole location of a "tcp" endpoint never reaches here -- the
// Listener Fabric builds a TcpRelay/TcpOverSshRelay for those instead).
func NewSource(pass settings.ProxyPassTo, pool *sshpool.Pool, conns settings.ConnectionsSettings) (Source, error) {
	connectTimeout := conns.RemoteConnectTimeout.Duration()
	requestTimeout := conns.RequestTimeout.Duration()

	switch p := pass.(type) {
	case settings.HttpProxyPass:
		return NewHttpUpstream(p.UpstreamURI, connectTimeout, requestTimeout), nil

	case settings.LocalPathProxyPass:
		return NewLocalFile(p.Path, ""), nil

	case settings.StaticProxyPass:
		return NewStaticResponse(p.Status, p.ContentType, p.Body), nil

	case settings.SshProxyPass:
		if p.Credentials == nil {
			return nil, fmt.Errorf("content: ssh proxy_pass_to %q has no resolved credentials", p.CredentialsID)
		}
		switch remote := p.Remote.(type) {
		case settings.RemoteHostContent:
			return NewHttpOverSsh(pool, p.Credentials, remote, connectTimeout), nil
		case settings.FilePathContent:
			return NewFileOverSsh(pool, p.Credentials, remote.Path, remote.DefaultFile, requestTimeout), nil
		default:
			return nil, fmt.Errorf("content: unrecognized ssh remote content %T", remote)
		}

	case settings.TcpProxyPass:
		return nil, fmt.Errorf("content: tcp proxy_pass_to has no HTTP-shaped source; use TcpRelay")

	default:
		return nil, fmt.Errorf("content: unrecognized proxy_pass_to %T", pass)
	}
}
