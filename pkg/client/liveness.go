package client

import (
	"sync/atomic"
	"time"

	"github.com/shadowmesh/msgwire/pkg/logging"
	"github.com/shadowmesh/msgwire/pkg/metrics"
	"github.com/shadowmesh/msgwire/pkg/srp"
	"github.com/shadowmesh/msgwire/pkg/wire"
)

// liveness implements the heartbeat tick policy from the specification's
// liveness design: one policy, the 10x silence threshold, no separate
// ping/pong timeout. It owns no goroutine of its own; the dispatch loop's
// ticker drives tick() once per heartBeatMs.
type liveness struct {
	heartBeat   time.Duration
	throwOnSend *atomic.Bool
	hostDead    *atomic.Bool
	outbound    chan<- outboundMessage
	logger      logging.Logger
	stats       metrics.Sink
}

func newLiveness(heartBeat time.Duration, throwOnSend, hostDead *atomic.Bool, outbound chan<- outboundMessage, logger logging.Logger, stats metrics.Sink) *liveness {
	return &liveness{
		heartBeat:   heartBeat,
		throwOnSend: throwOnSend,
		hostDead:    hostDead,
		outbound:    outbound,
		logger:      logger,
		stats:       stats,
	}
}

// tick runs one heartbeat period's worth of policy. session is nil in
// plaintext mode or before SecureConnection has been called.
func (lv *liveness) tick(session *srp.HandshakeSession) {
	if session == nil {
		lv.throwOnSend.Store(true)
		return
	}

	crypto := session.Crypto()
	if crypto == nil {
		lv.throwOnSend.Store(true)
		return
	}

	if silence := time.Since(session.LastHeartBeat()); silence > 10*lv.heartBeat {
		if lv.hostDead.CompareAndSwap(false, true) {
			lv.throwOnSend.Store(true)
			lv.logger.Error("liveness: host declared dead", logging.Fields{"silence_ms": silence.Milliseconds()})
			lv.stats.IncCounter("msgwire.liveness.host_dead")
		}
		return
	}

	select {
	case lv.outbound <- outboundMessage{frames: [][]byte{wire.HeartBeat}, encrypt: false}:
	default:
		lv.logger.Warn("liveness: outbound queue full, dropping heartbeat")
	}
}
