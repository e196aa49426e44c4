package client

import (
	"context"
	"errors"
)

// fakeSocket is an in-memory transport.Socket used to drive the client's
// two event loops without a live network connection, mirroring the
// teacher's own preference for channel-based fakes over mocking
// frameworks in its test suites.
type fakeSocket struct {
	identity []byte

	toPeer   chan [][]byte // frames the client sent, observed by the test
	fromPeer chan [][]byte // frames the test injects as if from the peer

	closed chan struct{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		toPeer:   make(chan [][]byte, 64),
		fromPeer: make(chan [][]byte, 64),
		closed:   make(chan struct{}),
	}
}

func (f *fakeSocket) SetIdentity(id []byte) { f.identity = append([]byte(nil), id...) }

func (f *fakeSocket) Connect(ctx context.Context, addr string) error { return nil }

func (f *fakeSocket) SendMultipart(frames [][]byte) error {
	cp := make([][]byte, len(frames))
	copy(cp, frames)
	select {
	case f.toPeer <- cp:
		return nil
	case <-f.closed:
		return errors.New("fakeSocket: closed")
	}
}

func (f *fakeSocket) RecvMultipart(ctx context.Context) ([][]byte, error) {
	select {
	case frames := <-f.fromPeer:
		return frames, nil
	case <-f.closed:
		return nil, errors.New("fakeSocket: closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSocket) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

// deliver injects frames as though they arrived from the peer.
func (f *fakeSocket) deliver(frames [][]byte) {
	f.fromPeer <- frames
}

// sent blocks for the next message the client transmitted.
func (f *fakeSocket) sent() [][]byte {
	return <-f.toPeer
}
