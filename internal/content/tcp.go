package content

import (
	"context"
	"fmt"
	"net"
	"time"

	"my-reverse-proxy/internal/settings"
	"my-reverse-proxy/internal/sshpool"
)

// TcpRelay dials a fixed remote address for the lifetime of an accepted
// raw-TCP connection; it has no HTTP-shaped Execute, since a Tcp endpoint
// never runs the request/response engine -- the Listener Fabric calls
// Dial directly and hands both ends to relay.Bidirectional.
type TcpRelay struct {
	addr           string
	connectTimeout time.Duration
}

func NewTcpRelay(addr string, connectTimeout time.Duration) *TcpRelay {
	return &TcpRelay{addr: addr, connectTimeout: connectTimeout}
}

func (t *TcpRelay) Dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: t.connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("tcp relay %s: %w", t.addr, err)
	}
	return conn, nil
}

// TcpOverSshRelay dials a remote host:port through a pooled SSH session's
// direct-tcpip channel, for a TcpOverSsh listen endpoint.
type TcpOverSshRelay struct {
	pool    *sshpool.Pool
	creds   *settings.SshCredentials
	host    string
	port    int
	timeout time.Duration
}

func NewTcpOverSshRelay(pool *sshpool.Pool, creds *settings.SshCredentials, host string, port int, timeout time.Duration) *TcpOverSshRelay {
	return &TcpOverSshRelay{pool: pool, creds: creds, host: host, port: port, timeout: timeout}
}

func (t *TcpOverSshRelay) Dial(ctx context.Context) (net.Conn, error) {
	sess, err := t.pool.GetOrCreate(ctx, t.creds, t.timeout)
	if err != nil {
		return nil, err
	}
	conn, err := sess.OpenTCPChannel(ctx, t.host, t.port, t.timeout)
	if err != nil {
		t.pool.Evict(t.creds)
		return nil, err
	}
	return conn, nil
}
