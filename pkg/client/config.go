package client

import (
	"time"

	"github.com/shadowmesh/msgwire/pkg/logging"
	"github.com/shadowmesh/msgwire/pkg/metrics"
)

const (
	minHeartBeat     = 1000 * time.Millisecond
	maxHeartBeat     = 600000 * time.Millisecond
	defaultHeartBeat = 30000 * time.Millisecond
)

// Credentials enables secured mode when both fields are non-empty.
// Absence of either leaves the client in plaintext mode: no handshake, no
// encryption, sends always permitted.
type Credentials struct {
	IdentityName   string
	IdentitySecret string
}

func (c *Credentials) complete() bool {
	return c != nil && c.IdentityName != "" && c.IdentitySecret != ""
}

// Option configures a Client at construction.
type Option func(*options)

type options struct {
	creds     *Credentials
	logger    logging.Logger
	stats     metrics.Sink
	heartBeat time.Duration
}

func defaultOptions() *options {
	return &options{
		logger:    logging.NewNop(),
		stats:     metrics.Noop{},
		heartBeat: defaultHeartBeat,
	}
}

// WithCredentials enables secured mode with the given identity pair.
func WithCredentials(identityName, identitySecret string) Option {
	return func(o *options) {
		o.creds = &Credentials{IdentityName: identityName, IdentitySecret: identitySecret}
	}
}

// WithLogger attaches a structured logger. The default is a no-op.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStats attaches a metrics sink. The default is metrics.Noop.
func WithStats(s metrics.Sink) Option {
	return func(o *options) {
		if s != nil {
			o.stats = s
		}
	}
}

// WithHeartBeat sets the heartbeat period, clamped to [1s, 600s].
func WithHeartBeat(d time.Duration) Option {
	return func(o *options) {
		o.heartBeat = clampHeartBeat(d)
	}
}

func clampHeartBeat(d time.Duration) time.Duration {
	if d < minHeartBeat {
		return minHeartBeat
	}
	if d > maxHeartBeat {
		return maxHeartBeat
	}
	return d
}
