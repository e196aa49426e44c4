package client

import "sync"

// MessageHandler receives application frames once Crypto (if any) has been
// removed.
type MessageHandler func(frames [][]byte, from Identity)

// InvalidMessageHandler receives frames that arrived during the handshake
// but could not be classified as a handshake reply.
type InvalidMessageHandler func(frames [][]byte)

// ProtocolEstablishedHandler is invoked once the handshake completes and
// Crypto is installed.
type ProtocolEstablishedHandler func()

// ProtocolFailedHandler is invoked when the handshake fails, with the
// reason recorded by the dispatch loop.
type ProtocolFailedHandler func(err error)

// eventBus fans incoming events out to any number of subscribers. The
// teacher's ConnectionManager wires a single callback per event
// (SetCallbacks); this generalizes that to support multiple subscribers
// with individual unsubscribe functions, which the facade's public API
// requires.
type eventBus struct {
	mu sync.RWMutex

	nextID uint64

	onMessage     map[uint64]MessageHandler
	onInvalid     map[uint64]InvalidMessageHandler
	onEstablished map[uint64]ProtocolEstablishedHandler
	onFailed      map[uint64]ProtocolFailedHandler
}

func newEventBus() *eventBus {
	return &eventBus{
		onMessage:     make(map[uint64]MessageHandler),
		onInvalid:     make(map[uint64]InvalidMessageHandler),
		onEstablished: make(map[uint64]ProtocolEstablishedHandler),
		onFailed:      make(map[uint64]ProtocolFailedHandler),
	}
}

// OnMessageReceived subscribes h and returns a func to remove it.
func (b *eventBus) OnMessageReceived(h MessageHandler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.onMessage[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.onMessage, id)
		b.mu.Unlock()
	}
}

// OnInvalidMessageReceived subscribes h and returns a func to remove it.
func (b *eventBus) OnInvalidMessageReceived(h InvalidMessageHandler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.onInvalid[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.onInvalid, id)
		b.mu.Unlock()
	}
}

// OnProtocolEstablished subscribes h and returns a func to remove it.
func (b *eventBus) OnProtocolEstablished(h ProtocolEstablishedHandler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.onEstablished[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.onEstablished, id)
		b.mu.Unlock()
	}
}

// OnProtocolFailed subscribes h and returns a func to remove it.
func (b *eventBus) OnProtocolFailed(h ProtocolFailedHandler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.onFailed[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.onFailed, id)
		b.mu.Unlock()
	}
}

func (b *eventBus) fireMessage(frames [][]byte, from Identity) {
	b.mu.RLock()
	handlers := make([]MessageHandler, 0, len(b.onMessage))
	for _, h := range b.onMessage {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(frames, from)
	}
}

func (b *eventBus) fireInvalid(frames [][]byte) {
	b.mu.RLock()
	handlers := make([]InvalidMessageHandler, 0, len(b.onInvalid))
	for _, h := range b.onInvalid {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(frames)
	}
}

func (b *eventBus) fireEstablished() {
	b.mu.RLock()
	handlers := make([]ProtocolEstablishedHandler, 0, len(b.onEstablished))
	for _, h := range b.onEstablished {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

func (b *eventBus) fireFailed(err error) {
	b.mu.RLock()
	handlers := make([]ProtocolFailedHandler, 0, len(b.onFailed))
	for _, h := range b.onFailed {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(err)
	}
}
