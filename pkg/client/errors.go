package client

import "errors"

// ErrDisposed is returned by any operation attempted on a closed client.
var ErrDisposed = errors.New("client: disposed")

// ErrInvalidArgument is returned by Send when frames is empty or nil.
var ErrInvalidArgument = errors.New("client: invalid argument")

// ErrNotReady is returned by Send when the client cannot send yet: the
// handshake has not completed, or the host has been declared dead.
var ErrNotReady = errors.New("client: not ready")

// ErrHandshakeRejected is the reason passed to OnProtocolFailed when the
// peer answers with an SF*/FF0 phase or rejects the client's proof.
var ErrHandshakeRejected = errors.New("client: handshake rejected by peer")
