package client

import (
	"context"
	"sync"

	"github.com/shadowmesh/msgwire/pkg/logging"
	"github.com/shadowmesh/msgwire/pkg/metrics"
	"github.com/shadowmesh/msgwire/pkg/srp"
	"github.com/shadowmesh/msgwire/pkg/transport"
)

// outboundMessage is one unit of work for the wire loop. encrypt marks
// whether each frame should be passed through the installed Crypto before
// transmission; heartbeats and handshake-control frames always carry
// encrypt == false, since they must remain readable before (and
// independent of) Crypto installation.
type outboundMessage struct {
	frames  [][]byte
	encrypt bool
}

// wireLoop is the single-threaded pair of goroutines (one per direction)
// that owns the transport socket and the outbound queue, modeled on the
// teacher's ConnectionManager readLoop/writeLoop split in
// client/daemon/connection.go. It never runs user callbacks and never
// touches the handshake state machine; it only reads the Crypto slot
// through cryptoSource, an atomic-pointer publication barrier maintained
// by the dispatch loop.
type wireLoop struct {
	socket      transport.Socket
	outbound    <-chan outboundMessage
	inbound     chan<- [][]byte
	cryptoSource func() *srp.Crypto
	logger      logging.Logger
	stats       metrics.Sink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWireLoop(socket transport.Socket, outbound <-chan outboundMessage, inbound chan<- [][]byte, cryptoSource func() *srp.Crypto, logger logging.Logger, stats metrics.Sink) *wireLoop {
	return &wireLoop{
		socket:       socket,
		outbound:     outbound,
		inbound:      inbound,
		cryptoSource: cryptoSource,
		logger:       logger,
		stats:        stats,
	}
}

// start launches the read and write goroutines. Safe to call once.
func (w *wireLoop) start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.wg.Add(2)
	go w.writeLoop()
	go w.readLoop()
}

// stop cancels both goroutines, closes the socket to unblock any pending
// read, and waits for both to exit.
func (w *wireLoop) stop() {
	w.cancel()
	w.socket.Close()
	w.wg.Wait()
}

func (w *wireLoop) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg, ok := <-w.outbound:
			if !ok {
				return
			}
			frames := msg.frames
			if msg.encrypt {
				if crypto := w.cryptoSource(); crypto != nil {
					frames = encryptFrames(crypto, frames)
				}
			}
			if err := w.socket.SendMultipart(frames); err != nil {
				w.logger.Error("wire loop: send failed", logging.Fields{"error": err.Error()})
				w.stats.IncCounter("msgwire.wire.send_error")
			}
		}
	}
}

func (w *wireLoop) readLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		frames, err := w.socket.RecvMultipart(w.ctx)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.logger.Warn("wire loop: recv failed", logging.Fields{"error": err.Error()})
			w.stats.IncCounter("msgwire.wire.recv_error")
			continue
		}

		select {
		case w.inbound <- frames:
		case <-w.ctx.Done():
			return
		}
	}
}

func encryptFrames(crypto *srp.Crypto, frames [][]byte) [][]byte {
	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[i] = crypto.Encrypt(f)
	}
	return out
}
