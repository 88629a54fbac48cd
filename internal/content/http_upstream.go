package content

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// IncomingRequest is the minimal shape the Proxy Pass Engine hands to a
// content source, decoupled from *http.Request so non-HTTP-native
// sources (file, ssh) don't need to depend on it either.
type IncomingRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     io.Reader
}

// HttpUpstream forwards to a remote HTTP(S) origin, keeping one
// *http.Client (and hence one pooled *http.Transport) per Location for
// the lifetime of the process. There is no explicit connect step: Go's
// Transport dials and pools connections on demand, so the
// Disconnected/Connecting/Ready states collapse to "client exists or
// doesn't".
type HttpUpstream struct {
	upstreamURI string

	mu     sync.Mutex
	client *http.Client
}

// NewHttpUpstream constructs a source that proxies to upstreamURI (the
// scheme+host[+path-prefix] parsed from the location's proxy_pass_to).
func NewHttpUpstream(upstreamURI string, connectTimeout, requestTimeout time.Duration) *HttpUpstream {
	return &HttpUpstream{
		upstreamURI: upstreamURI,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// Execute rewrites req's target to the upstream URI joined with the
// incoming request path and forwards it, streaming the upstream
// response back uninterpreted.
func (h *HttpUpstream) Execute(ctx context.Context, req *IncomingRequest) (*Response, error) {
	target, err := h.buildTargetURL(req.Path, req.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("http upstream %s: %w", h.upstreamURI, err)
	}

	outReq, err := http.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		return nil, err
	}
	outReq.Header = req.Header.Clone()
	StripHopByHopHeaders(outReq.Header)

	h.mu.Lock()
	client := h.client
	h.mu.Unlock()

	resp, err := client.Do(outReq)
	if err != nil {
		return nil, fmt.Errorf("http upstream %s: %w", target, err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

func (h *HttpUpstream) buildTargetURL(path, rawQuery string) (string, error) {
	base := strings.TrimSuffix(h.upstreamURI, "/")
	u, err := url.Parse(base + path)
	if err != nil {
		return "", err
	}
	u.RawQuery = rawQuery
	return u.String(), nil
}
