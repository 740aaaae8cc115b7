package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates the socket has no live connection.
	ErrNotConnected = errors.New("socket not connected")
	// ErrDisconnected indicates the connection dropped while in use.
	ErrDisconnected = errors.New("connection lost")
	// ErrSocketClosed indicates the socket was closed by its owner.
	ErrSocketClosed = errors.New("socket closed")
	// ErrHeartbeatTimeout indicates the server stopped acknowledging heartbeats.
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
	// ErrNotJoined indicates a push on a channel that is not joined.
	ErrNotJoined = errors.New("channel not joined")
	// ErrAlreadyJoined indicates Join was called more than once on a channel.
	ErrAlreadyJoined = errors.New("channel join already attempted")
	// ErrJoinRejected indicates the server refused the join.
	ErrJoinRejected = errors.New("join rejected")
	// ErrJoinTimeout indicates the join was not acknowledged in time.
	ErrJoinTimeout = errors.New("join timeout")
	// ErrChannelClosed indicates the server closed the channel.
	ErrChannelClosed = errors.New("channel closed by server")
	// ErrChannelCrashed indicates the server-side channel process failed.
	ErrChannelCrashed = errors.New("channel crashed")
)

// JoinError carries the server response of a rejected join.
type JoinError struct {
	Topic    string
	Response Payload
}

func (e *JoinError) Error() string {
	reason := e.Response.Get("reason").String()
	if reason == "" {
		return fmt.Sprintf("join %s rejected", e.Topic)
	}
	return fmt.Sprintf("join %s rejected: %s", e.Topic, reason)
}

// Unwrap lets errors.Is match ErrJoinRejected.
func (e *JoinError) Unwrap() error {
	return ErrJoinRejected
}

// IsDisconnect reports whether err means the underlying connection or the
// server-side channel went away, as opposed to a rejected join.
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrDisconnected) ||
		errors.Is(err, ErrSocketClosed) ||
		errors.Is(err, ErrHeartbeatTimeout) ||
		errors.Is(err, ErrChannelClosed) ||
		errors.Is(err, ErrChannelCrashed)
}
