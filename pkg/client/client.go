// Package client implements the client half of the secure message-wire
// transport: construction, the public Send/SecureConnection operations,
// event subscription, and the two event loops (wireloop.go,
// dispatchloop.go) that do the actual work. Modeled on the shape of the
// teacher's client/daemon/connection.go ConnectionManager, generalized
// from a single relay-specific protocol to the zero-knowledge handshake
// and dual-queue design this package implements.
package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shadowmesh/msgwire/pkg/logging"
	"github.com/shadowmesh/msgwire/pkg/transport"
)

const (
	outboundQueueDepth = 256
	inboundQueueDepth  = 256
)

// Client is one point-to-point session with a remote peer. It is safe for
// concurrent use; Send, SecureConnection, and the event-subscription
// methods may be called from any goroutine.
type Client struct {
	identity Identity
	opts     *options

	socket transport.Socket
	wire   *wireLoop
	disp   *dispatchLoop
	events *eventBus

	throwOnSend atomic.Bool
	hostDead    atomic.Bool

	outboundCh chan outboundMessage
	inboundCh  chan [][]byte

	closeOnce sync.Once
	disposed  atomic.Bool
}

// New dials connectionString and starts both event loops. In secured mode
// (WithCredentials supplied) the client starts with sends forbidden until
// SecureConnection completes a handshake; in plaintext mode sends are
// permitted immediately.
func New(connectionString string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	identity, err := newIdentity()
	if err != nil {
		return nil, fmt.Errorf("client: mint identity: %w", err)
	}

	socket := transport.NewWSocket(transport.DefaultWebSocketConfig())
	socket.SetIdentity(identity[:])
	if err := socket.Connect(context.Background(), connectionString); err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}

	return newWithSocket(identity, socket, o)
}

// newWithSocket builds a Client around an already-connected Socket. It is
// split out from New so tests can substitute a fake Socket without a live
// network connection.
func newWithSocket(identity Identity, socket transport.Socket, o *options) (*Client, error) {
	c := &Client{
		identity:   identity,
		opts:       o,
		socket:     socket,
		events:     newEventBus(),
		outboundCh: make(chan outboundMessage, outboundQueueDepth),
		inboundCh:  make(chan [][]byte, inboundQueueDepth),
	}

	secured := o.creds.complete()
	c.throwOnSend.Store(secured)

	c.disp = newDispatchLoop(identity, secured, c.inboundCh, c.outboundCh, &c.throwOnSend, &c.hostDead, o.heartBeat, c.events, o.logger, o.stats)
	c.wire = newWireLoop(socket, c.outboundCh, c.inboundCh, c.disp.cryptoSnapshot, o.logger, o.stats)

	c.wire.start()
	c.disp.start()

	o.logger.Info("client: started", logging.Fields{"client_id": identity.String(), "secured": secured})
	return c, nil
}

// SecureConnection drives the zero-knowledge handshake to completion. In
// plaintext mode it returns false immediately. If a session is already
// established it returns true without doing any work. Otherwise it starts
// a fresh handshake; when blocking is true it waits for
// OnProtocolEstablished (or ctx to end) before returning. When ctx ends
// first it returns false, but the handshake is not cancelled: it keeps
// running on the dispatch loop and may still fire OnProtocolEstablished
// later, so that event is the authoritative signal.
func (c *Client) SecureConnection(ctx context.Context, blocking bool) (bool, error) {
	if c.disposed.Load() {
		return false, ErrDisposed
	}
	if !c.opts.creds.complete() {
		return false, nil
	}
	if c.disp.isEstablished() {
		return true, nil
	}

	identityName, identitySecret := c.opts.creds.IdentityName, c.opts.creds.IdentitySecret
	c.disp.submit(func() {
		c.disp.beginHandshake(identityName, identitySecret)
	})

	if !blocking {
		return false, nil
	}

	select {
	case <-c.disp.established():
		return true, nil
	case <-ctx.Done():
		return false, nil
	}
}

// Send enqueues frames for transmission. It fails synchronously with
// ErrDisposed, ErrInvalidArgument, or ErrNotReady; it never blocks on the
// network.
func (c *Client) Send(frames [][]byte) error {
	if c.disposed.Load() {
		return ErrDisposed
	}
	if len(frames) == 0 {
		return ErrInvalidArgument
	}
	if c.throwOnSend.Load() {
		return ErrNotReady
	}

	select {
	case c.outboundCh <- outboundMessage{frames: frames, encrypt: true}:
		return nil
	default:
		return ErrNotReady
	}
}

// OnMessageReceived subscribes to delivered application frames.
func (c *Client) OnMessageReceived(h MessageHandler) func() { return c.events.OnMessageReceived(h) }

// OnInvalidMessageReceived subscribes to unrecognized inbound frames
// arriving during the handshake.
func (c *Client) OnInvalidMessageReceived(h InvalidMessageHandler) func() {
	return c.events.OnInvalidMessageReceived(h)
}

// OnProtocolEstablished subscribes to the handshake-succeeded event.
func (c *Client) OnProtocolEstablished(h ProtocolEstablishedHandler) func() {
	return c.events.OnProtocolEstablished(h)
}

// OnProtocolFailed subscribes to the handshake-failed event.
func (c *Client) OnProtocolFailed(h ProtocolFailedHandler) func() { return c.events.OnProtocolFailed(h) }

// ClientID returns this client's 16-byte transport identity.
func (c *Client) ClientID() Identity { return c.identity }

// CanSend reports whether Send would currently be accepted (ignoring
// disposal).
func (c *Client) CanSend() bool { return !c.throwOnSend.Load() }

// IsHostAlive reports whether the liveness subsystem still considers the
// peer reachable.
func (c *Client) IsHostAlive() bool { return !c.hostDead.Load() }

// Close disposes the client: idempotent, stops the wire loop (and its
// socket), then the dispatch loop. After Close, Send always fails with
// ErrDisposed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.disposed.Store(true)
		c.wire.stop()
		c.disp.stop()
		c.opts.stats.IncCounter("msgwire.client.disposed")
		c.opts.logger.Info("client: closed", logging.Fields{"client_id": c.identity.String()})
	})
	return nil
}
