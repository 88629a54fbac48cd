// Package listener owns the per-EndpointType accept loops: plain HTTP/1,
// cleartext HTTP/2 (h2c), TLS HTTP/1 and HTTP/2 (with optional
// client-cert auth), raw TCP, and TCP tunneled over SSH. Each listen
// port runs its own accept loop in its own goroutine for the life of the
// process; every accepted connection is handled in its own goroutine too.
//
// Grounded on the teacher's internal/tunnel/listen.go (serveListener's
// deadline-polling accept loop, shaped so a later graceful-shutdown pass
// has somewhere to hook in) and internal/tunnel/server.go's atomic
// connection gauge, generalized from one fixed TCP+TLS pair into one
// loop per configured EndpointType.
package listener

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/sirupsen/logrus"

	"my-reverse-proxy/internal/app"
	"my-reverse-proxy/internal/certverify"
	"my-reverse-proxy/internal/content"
	"my-reverse-proxy/internal/proxypass"
	"my-reverse-proxy/internal/relay"
	"my-reverse-proxy/internal/settings"
	"my-reverse-proxy/internal/sshpool"
)

// acceptDeadline bounds how long an accept loop blocks before re-checking
// ctx for cancellation, the same polling shape as the teacher's
// serveListener.
const acceptDeadline = 2 * time.Second

// Fabric owns every listening socket for the process.
type Fabric struct {
	ctx    *app.Context
	pool   *sshpool.Pool
	engine *proxypass.Engine
}

// NewFabric constructs the listener fabric. It builds its own
// proxypass.Engine so every HTTP-shaped endpoint shares one dispatch
// engine (and hence one content-source cache) across listen ports.
func NewFabric(appCtx *app.Context, pool *sshpool.Pool) *Fabric {
	return &Fabric{
		ctx:    appCtx,
		pool:   pool,
		engine: proxypass.NewEngine(appCtx, pool),
	}
}

// Start launches one accept loop per configured listen port and returns
// immediately; loops run until ctx is cancelled. A bind failure on any
// port is returned to the caller so main can exit with the documented
// bind-failure status.
func (f *Fabric) Start(ctx context.Context) error {
	config := f.ctx.Config()
	for port, endpoint := range config.GetListenPorts() {
		ln, err := net.Listen("tcp", addrForPort(port))
		if err != nil {
			return err
		}
		go f.serve(ctx, ln, endpoint, config)
	}
	return nil
}

func addrForPort(port uint16) string {
	return net.JoinHostPort("", strconv.Itoa(int(port)))
}

// serve dispatches to the endpoint-specific accept loop.
func (f *Fabric) serve(ctx context.Context, ln net.Listener, endpoint settings.EndpointType, config *settings.Configuration) {
	switch e := endpoint.(type) {
	case settings.Http1Endpoint:
		f.serveHTTP1(ctx, ln, e)
	case settings.Http2Endpoint:
		f.serveH2C(ctx, ln, e)
	case settings.Https1Endpoint:
		f.serveHTTPS(ctx, ln, config, e.SslID, e.ClientCAID, []string{"h2", "http/1.1", "http/1.0"}, false)
	case settings.Https2Endpoint:
		f.serveHTTPS(ctx, ln, config, e.SslID, e.ClientCAID, []string{"h2"}, true)
	case settings.TcpEndpoint:
		f.serveTcp(ctx, ln, e)
	case settings.TcpOverSshEndpoint:
		f.serveTcpOverSsh(ctx, ln, e)
	default:
		logrus.Errorf("listener: unrecognized endpoint type %T", endpoint)
	}
}

// acceptLoop centralizes the deadline-poll-for-shutdown accept pattern
// shared by every listener kind; handle runs in its own goroutine per
// accepted connection.
func acceptLoop(ctx context.Context, ln net.Listener, handle func(net.Conn)) {
	defer ln.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if tcpLn, ok := ln.(*net.TCPListener); ok {
			tcpLn.SetDeadline(time.Now().Add(acceptDeadline))
		}

		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			logrus.WithError(err).Warn("listener: accept failed, loop exiting")
			return
		}
		go handle(conn)
	}
}

func (f *Fabric) serveHTTP1(ctx context.Context, ln net.Listener, e settings.Http1Endpoint) {
	logrus.Infof("listening http on %s", ln.Addr())
	srv := &http.Server{Handler: f.connTrackingHandler(proxypass.ConnInfo{})}
	acceptLoop(ctx, ln, func(conn net.Conn) {
		f.ctx.IncHTTPConnections()
		defer f.ctx.DecHTTPConnections()
		srv.Serve(&singleConnListener{conn})
	})
}

func (f *Fabric) serveH2C(ctx context.Context, ln net.Listener, e settings.Http2Endpoint) {
	logrus.Infof("listening h2c on %s", ln.Addr())
	h2s := &http2.Server{}
	handler := h2c.NewHandler(f.connTrackingHandler(proxypass.ConnInfo{}), h2s)
	srv := &http.Server{Handler: handler}
	acceptLoop(ctx, ln, func(conn net.Conn) {
		f.ctx.IncHTTPConnections()
		defer f.ctx.DecHTTPConnections()
		srv.Serve(&singleConnListener{conn})
	})
}

// serveHTTPS handles both Https1 (ALPN negotiated among h2, http/1.1 and
// http/1.0) and
// Https2 (ALPN pinned to "h2" only) -- the only difference between the
// two is alpnProtocols and whether http2.ConfigureServer runs.
func (f *Fabric) serveHTTPS(ctx context.Context, ln net.Listener, config *settings.Configuration, sslID, caID string, alpnProtocols []string, forceH2 bool) {
	cert, ok := config.GetSslCertificate(sslID)
	if !ok {
		logrus.Errorf("listener: ssl_certificate %q not found, listener on %s not started", sslID, ln.Addr())
		ln.Close()
		return
	}

	var ca *settings.ClientCertificateCa
	if caID != "" {
		if resolved, ok := config.GetClientCertificateCa(caID); ok {
			ca = &resolved
		} else {
			logrus.Errorf("listener: client_certificate_ca %q not found, listener on %s not started", caID, ln.Addr())
			ln.Close()
			return
		}
	}

	logrus.Infof("listening https on %s (client auth: %v)", ln.Addr(), ca != nil)

	acceptLoop(ctx, ln, func(conn net.Conn) {
		handshakeID := f.ctx.NextID()

		var info proxypass.ConnInfo
		info.RemoteAddr = conn.RemoteAddr()

		tlsConfig := certverify.BuildServerTLSConfig(cert, ca, f.ctx, handshakeID, alpnProtocols)
		tlsConn := tls.Server(conn, tlsConfig)

		if ca != nil {
			slot := f.ctx.SavedClientCerts.CreateSlot(handshakeID)
			if err := tlsConn.Handshake(); err != nil {
				logrus.WithError(err).Warn("listener: tls handshake failed")
				tlsConn.Close()
				return
			}
			result := f.ctx.SavedClientCerts.Wait(handshakeID, slot)
			if result.Rejected {
				tlsConn.Close()
				return
			}
			info.ClientCertCN = result.CommonName
		}

		f.ctx.IncHTTPConnections()
		defer f.ctx.DecHTTPConnections()

		baseCtx := proxypass.WithConnInfo(context.Background(), info)
		connSrv := &http.Server{
			Handler: f.connTrackingHandlerWithInfo(info),
			BaseContext: func(net.Listener) context.Context {
				return baseCtx
			},
		}
		if forceH2 {
			http2.ConfigureServer(connSrv, &http2.Server{})
		}
		connSrv.Serve(&singleConnListener{tlsConn})
	})
}

func (f *Fabric) connTrackingHandler(info proxypass.ConnInfo) http.Handler {
	return f.connTrackingHandlerWithInfo(info)
}

func (f *Fabric) connTrackingHandlerWithInfo(info proxypass.ConnInfo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.engine.ServeHTTP(w, r.WithContext(proxypass.WithConnInfo(r.Context(), info)))
	})
}

func (f *Fabric) serveTcp(ctx context.Context, ln net.Listener, e settings.TcpEndpoint) {
	logrus.Infof("listening tcp on %s -> %s", ln.Addr(), e.RemoteAddr)
	connectTimeout := f.ctx.ConnectionSettings().RemoteConnectTimeout.Duration()
	tcpRelay := content.NewTcpRelay(e.RemoteAddr, connectTimeout)
	acceptLoop(ctx, ln, func(conn net.Conn) {
		defer conn.Close()
		remote, err := tcpRelay.Dial(ctx)
		if err != nil {
			logrus.WithError(err).Warn("listener: tcp dial failed")
			return
		}
		defer remote.Close()
		relay.Bidirectional(conn, remote)
	})
}

func (f *Fabric) serveTcpOverSsh(ctx context.Context, ln net.Listener, e settings.TcpOverSshEndpoint) {
	logrus.Infof("listening tcp-over-ssh on %s -> %s:%d", ln.Addr(), e.RemoteHost, e.RemotePort)
	connectTimeout := f.ctx.ConnectionSettings().RemoteConnectTimeout.Duration()
	sshRelay := content.NewTcpOverSshRelay(f.pool, e.Credentials, e.RemoteHost, e.RemotePort, connectTimeout)
	acceptLoop(ctx, ln, func(conn net.Conn) {
		defer conn.Close()
		channel, err := sshRelay.Dial(ctx)
		if err != nil {
			logrus.WithError(err).Warn("listener: ssh channel open failed")
			return
		}
		defer channel.Close()
		relay.Bidirectional(conn, channel)
	})
}

// singleConnListener adapts one already-accepted net.Conn into a
// net.Listener serving exactly that connection once, so *http.Server can
// drive a connection whose accept loop (and, for TLS, handshake/client-cert
// rendezvous) this package already performed itself.
//
// Must be used via its pointer form (&singleConnListener{conn}, as above):
// http.Server.Serve calls Accept repeatedly on the one listener value it
// is given, so a pointer receiver is required for the second Accept call
// to observe the first call's nil-out.
type singleConnListener struct{ conn net.Conn }

func (s *singleConnListener) Accept() (net.Conn, error) {
	if s.conn == nil {
		return nil, net.ErrClosed
	}
	conn := s.conn
	s.conn = nil
	return conn, nil
}

func (s *singleConnListener) Close() error   { return nil }
func (s *singleConnListener) Addr() net.Addr { return s.conn.LocalAddr() }
