// Package transport provides the multipart message-queue socket the wire
// loop reads from and writes to. It is modeled on the teacher's
// shared/networking/transport.go: a connection owns its own read/write
// goroutines, exposes channels (or, here, blocking calls the wire loop
// drives itself) rather than letting callers touch the underlying
// connection, and never runs application logic.
//
// The socket behaves like a dealer: every outbound message is preceded by
// an empty addressing frame, and every inbound message has its leading
// empty addressing frame stripped before the caller sees it. Callers above
// this package never see that frame.
package transport

import "context"

// Socket is a multipart message-queue connection to a single remote peer.
// Implementations are not safe for concurrent Send and concurrent Recv
// calls from more than one goroutine each; the wire loop is the only
// caller and it already serializes each direction onto its own goroutine.
type Socket interface {
	// SetIdentity assigns the identity frame this socket presents to the
	// peer. Must be called before Connect.
	SetIdentity(id []byte)

	// Connect dials the remote endpoint. ctx bounds only the dial itself;
	// it does not bound the lifetime of the resulting connection.
	Connect(ctx context.Context, addr string) error

	// SendMultipart transmits frames as a single logical message.
	SendMultipart(frames [][]byte) error

	// RecvMultipart blocks until the next inbound message arrives, the
	// socket is closed, or ctx is done.
	RecvMultipart(ctx context.Context) ([][]byte, error)

	// Close releases the underlying connection. Safe to call more than
	// once.
	Close() error
}
