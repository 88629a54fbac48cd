package content

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"my-reverse-proxy/internal/settings"
	"my-reverse-proxy/internal/sshpool"
)

// HttpOverSsh forwards an HTTP request through a direct-tcpip channel
// opened over a pooled SSH session, grounded on
// connect_to_http_over_ssh.rs: channels are opened through the
// http.Transport's DialContext, so an idle channel is reused by later
// requests as a keep-alive connection, and the *ssh.Client underneath is
// shared via sshpool.Pool.
type HttpOverSsh struct {
	pool    *sshpool.Pool
	creds   *settings.SshCredentials
	remote  settings.RemoteHostContent
	timeout time.Duration

	mu     sync.Mutex
	client *http.Client
}

// NewHttpOverSsh constructs a source that tunnels HTTP requests to
// remote.Host:remote.Port through the SSH session for creds.
func NewHttpOverSsh(pool *sshpool.Pool, creds *settings.SshCredentials, remote settings.RemoteHostContent, connectTimeout time.Duration) *HttpOverSsh {
	h := &HttpOverSsh{pool: pool, creds: creds, remote: remote, timeout: connectTimeout}
	h.client = &http.Client{
		Transport: &http.Transport{
			DialContext: h.dialChannel,
		},
	}
	return h
}

func (h *HttpOverSsh) dialChannel(ctx context.Context, network, addr string) (net.Conn, error) {
	sess, err := h.pool.GetOrCreate(ctx, h.creds, h.timeout)
	if err != nil {
		return nil, err
	}
	conn, err := sess.OpenTCPChannel(ctx, h.remote.Host, h.remote.Port, h.timeout)
	if err != nil {
		h.pool.Evict(h.creds)
		return nil, err
	}
	return conn, nil
}

// Execute forwards req over the SSH tunnel the same way HttpUpstream
// forwards over a direct connection.
func (h *HttpOverSsh) Execute(ctx context.Context, req *IncomingRequest) (*Response, error) {
	target := fmt.Sprintf("http://%s:%d%s", h.remote.Host, h.remote.Port, req.Path)
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}

	outReq, err := http.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		return nil, err
	}
	outReq.Header = req.Header.Clone()
	StripHopByHopHeaders(outReq.Header)

	resp, err := h.client.Do(outReq)
	if err != nil {
		return nil, fmt.Errorf("http over ssh %s: %w", target, err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}
