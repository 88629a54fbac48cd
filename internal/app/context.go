// Package app holds the process-wide shared state described in spec.md
// §3/§4.1: the connection-gauge, monotonic id generator, token-signing
// key, the current configuration snapshot, and the saved-client-cert
// rendezvous registry. Every listener task and every per-connection task
// holds a reference to the same *Context for the lifetime of the process.
package app

import (
	"sync/atomic"

	"my-reverse-proxy/internal/settings"
)

// State is the AppContext lifecycle, per spec.md §3.
type State int32

const (
	StateInitialized State = iota
	StateRunning
	StateShuttingDown
)

// Context is the process-singleton application context.
type Context struct {
	httpConnections atomic.Int64
	id              atomic.Int64
	state           atomic.Int32

	tokenSecretKey [48]byte

	// connectionSettings is fixed for the process lifetime, captured once
	// at startup -- unlike config, it is not affected by a later Swap.
	connectionSettings settings.ConnectionsSettings

	config atomic.Pointer[settings.Configuration]

	SavedClientCerts *SavedClientCerts
}

// NewContext constructs the AppContext from a compiled Configuration. The
// session key (if any) was already resolved by the Config Loader and is
// passed here so the token key can be derived deterministically; an empty
// sessionKey falls back to a once-per-process random seed.
func NewContext(config *settings.Configuration, sessionKey []byte) *Context {
	ctx := &Context{
		tokenSecretKey:      deriveTokenSecretKey(sessionKey),
		connectionSettings:  config.Connections,
		SavedClientCerts:    NewSavedClientCerts(),
	}
	ctx.config.Store(config)
	ctx.state.Store(int32(StateInitialized))
	return ctx
}

// NextID returns a strictly increasing, process-unique identifier. Used
// both for per-request logging ids and as the SavedClientCerts rendezvous
// key (one per handshake, per the REDESIGN FLAG in spec.md §9).
func (c *Context) NextID() int64 {
	return c.id.Add(1) - 1
}

// TokenSecretKey returns the 48-byte symmetric key derived at startup.
func (c *Context) TokenSecretKey() [48]byte {
	return c.tokenSecretKey
}

// ConnectionSettings returns the buffer-size/timeout settings captured at
// startup. These do not change on a configuration Swap.
func (c *Context) ConnectionSettings() settings.ConnectionsSettings {
	return c.connectionSettings
}

// Config returns the currently active configuration snapshot. Callers
// that serve a single request should read it once at the start of that
// request and keep using the same pointer throughout, so a concurrent
// Swap never causes the request to observe two different snapshots.
func (c *Context) Config() *settings.Configuration {
	return c.config.Load()
}

// Swap atomically replaces the active configuration snapshot. In-flight
// requests that already captured the old pointer via Config() continue
// unaffected; only requests that call Config() afterward see the new one.
func (c *Context) Swap(config *settings.Configuration) {
	c.config.Store(config)
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	return State(c.state.Load())
}

// SetState transitions the lifecycle state machine.
func (c *Context) SetState(s State) {
	c.state.Store(int32(s))
}

// IncHTTPConnections increments the connection gauge and returns the new value.
func (c *Context) IncHTTPConnections() int64 {
	return c.httpConnections.Add(1)
}

// DecHTTPConnections decrements the connection gauge and returns the new value.
func (c *Context) DecHTTPConnections() int64 {
	return c.httpConnections.Add(-1)
}

// HTTPConnections returns the current connection gauge value.
func (c *Context) HTTPConnections() int64 {
	return c.httpConnections.Load()
}
