package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Send/Recv calls made before Connect or
// after Close.
var ErrNotConnected = errors.New("transport: not connected")

// ErrFrameTooLarge is returned when encoding a multipart message whose
// total wire size would exceed MaxMessageSize.
var ErrFrameTooLarge = errors.New("transport: message exceeds maximum size")

// MaxMessageSize bounds a single encoded multipart message, guarding
// against a malformed length prefix from the peer causing an unbounded
// allocation.
const MaxMessageSize = 16 << 20 // 16 MiB

// WebSocketConfig configures a WSocket's dial and connection behavior.
type WebSocketConfig struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// DefaultWebSocketConfig returns the timeouts the client uses unless
// overridden.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      0, // liveness is handled above this layer by pkg/client
		WriteTimeout:     10 * time.Second,
	}
}

// WSocket is a Socket implementation over a single gorilla/websocket
// connection. Multipart messages are encoded as one binary WebSocket
// message: a leading empty addressing frame, followed by each frame
// length-prefixed with a big-endian uint32.
type WSocket struct {
	cfg WebSocketConfig

	mu       sync.Mutex
	conn     *websocket.Conn
	identity []byte
	closed   bool
}

// NewWSocket constructs a WSocket that has not yet dialed anything.
func NewWSocket(cfg WebSocketConfig) *WSocket {
	return &WSocket{cfg: cfg}
}

// SetIdentity records the socket's identity. WSocket keeps it but does not
// transmit it: the wire encoding carries only the empty addressing frame
// and the payload frames, so the peer never sees the identity.
func (w *WSocket) SetIdentity(id []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.identity = append([]byte(nil), id...)
}

// Connect dials addr (a ws:// or wss:// URL).
func (w *WSocket) Connect(ctx context.Context, addr string) error {
	if _, err := url.Parse(addr); err != nil {
		return fmt.Errorf("transport: invalid address: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: w.cfg.HandshakeTimeout,
		NetDialContext: func(ctx context.Context, network, a string) (net.Conn, error) {
			d := &net.Dialer{Timeout: w.cfg.HandshakeTimeout}
			return d.DialContext(ctx, network, a)
		},
	}

	conn, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("transport: dial: %w", err)
	}
	conn.SetReadLimit(MaxMessageSize)

	w.mu.Lock()
	w.conn = conn
	w.closed = false
	w.mu.Unlock()
	return nil
}

// SendMultipart writes frames as one binary WebSocket message, preceded by
// the empty dealer addressing frame.
func (w *WSocket) SendMultipart(frames [][]byte) error {
	w.mu.Lock()
	conn := w.conn
	closed := w.closed
	timeout := w.cfg.WriteTimeout
	w.mu.Unlock()

	if conn == nil || closed {
		return ErrNotConnected
	}

	payload, err := encodeFrames(frames)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil || w.closed {
		return ErrNotConnected
	}
	if timeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, payload)
}

// RecvMultipart blocks for the next inbound message and strips its leading
// addressing frame before returning.
func (w *WSocket) RecvMultipart(ctx context.Context) ([][]byte, error) {
	w.mu.Lock()
	conn := w.conn
	closed := w.closed
	readTimeout := w.cfg.ReadTimeout
	w.mu.Unlock()

	if conn == nil || closed {
		return nil, ErrNotConnected
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else if readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("transport: read: %w", err)
	}

	frames, err := decodeFrames(data)
	if err != nil {
		return nil, err
	}
	return stripAddressingFrame(frames), nil
}

// Close closes the underlying connection. Safe to call more than once.
func (w *WSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.conn == nil {
		return nil
	}
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing")
	_ = w.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	return err
}

// encodeFrames lays out a leading empty addressing frame followed by each
// of frames, each as [uint32 big-endian length][bytes].
func encodeFrames(frames [][]byte) ([]byte, error) {
	total := 4 // addressing frame length prefix
	for _, f := range frames {
		total += 4 + len(f)
	}
	if total > MaxMessageSize {
		return nil, ErrFrameTooLarge
	}

	out := make([]byte, 0, total)
	out = appendFrame(out, nil)
	for _, f := range frames {
		out = appendFrame(out, f)
	}
	return out, nil
}

func appendFrame(out []byte, f []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f)))
	out = append(out, lenBuf[:]...)
	return append(out, f...)
}

// decodeFrames parses the wire layout produced by encodeFrames.
func decodeFrames(data []byte) ([][]byte, error) {
	var frames [][]byte
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("transport: truncated frame length prefix")
		}
		n := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint64(n) > uint64(len(data)) {
			return nil, fmt.Errorf("transport: frame length %d exceeds remaining message", n)
		}
		frames = append(frames, data[:n])
		data = data[n:]
	}
	return frames, nil
}

func stripAddressingFrame(frames [][]byte) [][]byte {
	if len(frames) == 0 {
		return frames
	}
	return frames[1:]
}
