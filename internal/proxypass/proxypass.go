// Package proxypass implements the request-dispatch engine shared by
// every HTTP-shaped listener (Http1, Http2, Https1, Https2): resolve the
// host, match a location by longest path prefix, enforce the allow-list,
// lazily acquire that location's content source, apply header mutations,
// forward the request, and map any failure to an HTTP status per
// spec.md's error taxonomy.
//
// Grounded on https_server.rs's handle_requests dispatch/error-mapping
// and the teacher's Handler/Session per-connection bookkeeping shape
// (internal/tunnel/session.go), adapted from a raw-byte relay to an
// http.Handler.
package proxypass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"my-reverse-proxy/internal/app"
	"my-reverse-proxy/internal/content"
	"my-reverse-proxy/internal/settings"
	"my-reverse-proxy/internal/sshpool"
)

// Engine is the shared http.Handler installed on every HTTP-shaped
// listener. One Engine is reused across all connections and requests for
// the process lifetime; per-location content sources are cached inside
// it keyed by the location's path prefix plus its proxy_pass_to string so
// repeated requests to the same location reuse the same lazily-connected
// source.
type Engine struct {
	ctx  *app.Context
	pool *sshpool.Pool

	mu      sync.Mutex
	sources map[string]content.Source
}

// NewEngine constructs the shared dispatch engine. pool is the SSH
// session pool content sources dial through for ssh: proxy_pass_to
// values.
func NewEngine(ctx *app.Context, pool *sshpool.Pool) *Engine {
	return &Engine{
		ctx:     ctx,
		pool:    pool,
		sources: make(map[string]content.Source),
	}
}

// connContextKey carries the per-connection authenticated client CN (or
// its absence) into each request's context, so ServeHTTP's allow-list
// check can see it.
type connContextKey struct{}

// ConnInfo is stashed on each connection's base context by the listener
// before requests are served over it.
type ConnInfo struct {
	ClientCertCN string // empty if the endpoint has no client-cert auth
	RemoteAddr   net.Addr
}

// WithConnInfo returns a context carrying info, for a listener to use as
// the base context passed to http.Server / http2.Server for a given
// accepted connection.
func WithConnInfo(ctx context.Context, info ConnInfo) context.Context {
	return context.WithValue(ctx, connContextKey{}, info)
}

func connInfoFrom(ctx context.Context) ConnInfo {
	if v, ok := ctx.Value(connContextKey{}).(ConnInfo); ok {
		return v
	}
	return ConnInfo{}
}

// ServeHTTP implements the engine's 8-step dispatch: resolve host, match
// location, enforce allow-list, acquire content source, apply header
// mutations, forward, stream response, map errors.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := e.ctx.NextID()
	log := logrus.WithField("request_id", requestID)

	config := e.ctx.Config()

	host := hostForRequest(r)
	hostConfig, ok := config.GetHostConfiguration(host)
	if !ok {
		log.WithField("host", host).Warn("proxypass: no host configuration")
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	location, ok := hostConfig.MatchLocation(r.URL.Path)
	if !ok {
		log.WithField("path", r.URL.Path).Warn("proxypass: no location matched")
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	if location.RequiresAuth() {
		cn := connInfoFrom(r.Context()).ClientCertCN
		if cn == "" || !location.Allows(cn) {
			log.WithFields(logrus.Fields{"path": r.URL.Path, "cn": cn}).Warn("proxypass: forbidden")
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
	}

	source, err := e.sourceFor(location.PathPrefix+"|"+location.ProxyPass.String(), location.ProxyPass, config.Connections)
	if err != nil {
		log.WithError(err).Error("proxypass: building content source")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	inReq := &content.IncomingRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     r.Body,
	}

	combined := mergeHeaderMutations(hostConfig.ModifyHeaders, location.ModifyHeaders)
	combined.Apply(inReq.Header)

	ctx, cancel := context.WithTimeout(r.Context(), config.Connections.RequestTimeout.Duration())
	defer cancel()

	resp, err := source.Execute(ctx, inReq)
	if err != nil {
		mapError(w, log, err)
		return
	}
	defer resp.Body.Close()

	content.StripHopByHopHeaders(resp.Header)
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.WithError(err).Warn("proxypass: copying response body")
	}
}

// sourceFor returns the cached Source for key, building one via
// content.NewSource on first use.
func (e *Engine) sourceFor(key string, pass settings.ProxyPassTo, conns settings.ConnectionsSettings) (content.Source, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if src, ok := e.sources[key]; ok {
		return src, nil
	}
	src, err := content.NewSource(pass, e.pool, conns)
	if err != nil {
		return nil, err
	}
	e.sources[key] = src
	return src, nil
}

// mergeHeaderMutations combines host-level and location-level mutations,
// with the location's entries taking precedence (applied second).
func mergeHeaderMutations(host, loc settings.HeaderMutations) settings.HeaderMutations {
	merged := settings.HeaderMutations{
		Add:      map[string]string{},
		Remove:   append(append([]string{}, host.Remove...), loc.Remove...),
		Override: map[string]string{},
	}
	for k, v := range host.Add {
		merged.Add[k] = v
	}
	for k, v := range loc.Add {
		merged.Add[k] = v
	}
	for k, v := range host.Override {
		merged.Override[k] = v
	}
	for k, v := range loc.Override {
		merged.Override[k] = v
	}
	return merged
}

// mapError implements spec.md's error-to-status table, grounded on
// handle_requests' match over ProxyPassError in https_server.rs.
func mapError(w http.ResponseWriter, log *logrus.Entry, err error) {
	var fe *sshpool.FileError
	switch {
	case errors.Is(err, content.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not Found")
	case errors.As(err, &fe) && fe.NotFound():
		writeError(w, http.StatusNotFound, "Not found")
	case isTimeout(err):
		log.WithError(err).Warn("proxypass: upstream timeout")
		writeError(w, http.StatusInternalServerError, "Timeout")
	default:
		log.WithError(err).Error("proxypass: upstream failure")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func writeError(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

// hostForRequest extracts the routing host, preferring :authority (which
// r.Host already carries for HTTP/2 requests handled by net/http).
func hostForRequest(r *http.Request) string {
	if r.Host != "" {
		return r.Host
	}
	return r.URL.Host
}
