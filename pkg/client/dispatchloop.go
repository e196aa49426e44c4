package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shadowmesh/msgwire/pkg/logging"
	"github.com/shadowmesh/msgwire/pkg/metrics"
	"github.com/shadowmesh/msgwire/pkg/srp"
	"github.com/shadowmesh/msgwire/pkg/wire"
)

// dispatchLoop is the second single-threaded event loop: it owns the
// inbound queue, the handshake driver, the heartbeat timer, and user
// callback dispatch. The HandshakeSession is mutated exclusively here;
// callers elsewhere (SecureConnection) submit work through commands
// instead of touching the session directly, preserving the single-mutator
// invariant the specification requires.
type dispatchLoop struct {
	inbound  <-chan [][]byte
	outbound chan<- outboundMessage
	commands chan func()

	session atomic.Pointer[srp.HandshakeSession]

	identity    Identity
	secured     bool
	throwOnSend *atomic.Bool
	hostDead    *atomic.Bool
	heartBeat   time.Duration

	events   *eventBus
	liveness *liveness
	logger   logging.Logger
	stats    metrics.Sink

	establishedCh   chan struct{}
	establishedOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newDispatchLoop(
	identity Identity,
	secured bool,
	inbound <-chan [][]byte,
	outbound chan<- outboundMessage,
	throwOnSend, hostDead *atomic.Bool,
	heartBeat time.Duration,
	events *eventBus,
	logger logging.Logger,
	stats metrics.Sink,
) *dispatchLoop {
	d := &dispatchLoop{
		inbound:       inbound,
		outbound:      outbound,
		commands:      make(chan func(), 8),
		identity:      identity,
		secured:       secured,
		throwOnSend:   throwOnSend,
		hostDead:      hostDead,
		heartBeat:     heartBeat,
		events:        events,
		logger:        logger,
		stats:         stats,
		establishedCh: make(chan struct{}),
	}
	d.liveness = newLiveness(heartBeat, throwOnSend, hostDead, outbound, logger, stats)
	return d
}

func (d *dispatchLoop) start() {
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.wg.Add(1)
	go d.run()
}

func (d *dispatchLoop) stop() {
	d.cancel()
	d.wg.Wait()
}

// submit queues fn to run on the dispatch loop's goroutine. fn must not
// block; long work belongs in a user callback, not a command.
func (d *dispatchLoop) submit(fn func()) {
	select {
	case d.commands <- fn:
	case <-d.ctx.Done():
	}
}

// established returns a channel closed the instant the handshake succeeds.
func (d *dispatchLoop) established() <-chan struct{} {
	return d.establishedCh
}

func (d *dispatchLoop) isEstablished() bool {
	session := d.session.Load()
	return session != nil && session.Crypto() != nil
}

// cryptoSnapshot is the atomic-pointer publication barrier the wire loop
// reads through: it never mutates the session, only observes whichever
// Crypto (if any) the dispatch loop has most recently installed.
func (d *dispatchLoop) cryptoSnapshot() *srp.Crypto {
	session := d.session.Load()
	if session == nil {
		return nil
	}
	return session.Crypto()
}

// beginHandshake creates a fresh HandshakeSession and sends its initiation
// frames. Must run on the dispatch loop goroutine (via submit).
func (d *dispatchLoop) beginHandshake(identityName, identitySecret string) {
	session := srp.NewHandshakeSession(identityName, identitySecret)
	d.session.Store(session)

	frames, err := session.CreateInitiationRequest()
	if err != nil {
		d.logger.Error("dispatch loop: initiation failed", logging.Fields{"error": err.Error()})
		session.Fail()
		d.events.fireFailed(err)
		return
	}
	d.enqueueControl(frames)
}

func (d *dispatchLoop) enqueueControl(frames [][]byte) {
	select {
	case d.outbound <- outboundMessage{frames: frames, encrypt: false}:
	case <-d.ctx.Done():
	}
}

func (d *dispatchLoop) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.heartBeat)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case fn := <-d.commands:
			fn()
		case frames, ok := <-d.inbound:
			if !ok {
				return
			}
			d.handleInbound(frames)
		case <-ticker.C:
			if d.secured {
				d.liveness.tick(d.session.Load())
			}
		}
	}
}

func (d *dispatchLoop) handleInbound(frames [][]byte) {
	if wire.IsHeartBeat(frames) {
		if session := d.session.Load(); session != nil {
			session.RecordHeartBeat()
		}
		return
	}

	session := d.session.Load()
	if d.secured && (session == nil || session.Crypto() == nil) {
		d.handleHandshakeFrames(session, frames)
		return
	}

	if session != nil {
		if crypto := session.Crypto(); crypto != nil {
			decrypted, err := decryptFrames(crypto, frames)
			if err != nil {
				d.logger.Warn("dispatch loop: decrypt failed", logging.Fields{"error": err.Error()})
				d.events.fireInvalid(frames)
				return
			}
			frames = decrypted
		}
	}
	d.events.fireMessage(frames, d.identity)
}

func (d *dispatchLoop) handleHandshakeFrames(session *srp.HandshakeSession, frames [][]byte) {
	if session == nil {
		d.events.fireInvalid(frames)
		return
	}
	if !wire.IsHandshakeReply(frames) {
		d.events.fireInvalid(frames)
		return
	}

	switch wire.PhaseOf(frames) {
	case wire.PhaseSM0:
		reply, err := session.CreateHandshakeRequest(frames)
		if err != nil {
			d.logger.Warn("dispatch loop: SM0 step failed", logging.Fields{"error": err.Error()})
			d.events.fireFailed(err)
			d.stats.IncCounter("msgwire.handshake.failed")
			return
		}
		d.enqueueControl(reply)

	case wire.PhaseSM1:
		reply, err := session.CreateProofRequest(frames)
		if err != nil {
			d.logger.Warn("dispatch loop: SM1 step failed", logging.Fields{"error": err.Error()})
			d.events.fireFailed(err)
			d.stats.IncCounter("msgwire.handshake.failed")
			return
		}
		d.enqueueControl(reply)

	case wire.PhaseSM2:
		if session.ProcessProofReply(frames) {
			d.throwOnSend.Store(false)
			d.establishedOnce.Do(func() { close(d.establishedCh) })
			d.events.fireEstablished()
			d.stats.IncCounter("msgwire.handshake.established")
			return
		}
		d.logger.Warn("dispatch loop: proof verification failed", nil)
		d.events.fireFailed(ErrHandshakeRejected)
		d.stats.IncCounter("msgwire.handshake.failed")

	default: // FF0, SF0, SF1, SF2, or any other phase
		session.Fail()
		d.logger.Warn("dispatch loop: peer signalled handshake failure", logging.Fields{"phase": wire.PhaseOf(frames).String()})
		d.events.fireFailed(ErrHandshakeRejected)
		d.stats.IncCounter("msgwire.handshake.failed")
	}
}

func decryptFrames(crypto *srp.Crypto, frames [][]byte) ([][]byte, error) {
	out := make([][]byte, len(frames))
	for i, f := range frames {
		plain, err := crypto.Decrypt(f)
		if err != nil {
			return nil, err
		}
		out[i] = plain
	}
	return out, nil
}
