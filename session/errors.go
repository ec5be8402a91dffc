package session

import "errors"

var (
	// ErrWriteBackpressure is returned by Session.Send when the outbound
	// queue is full; the caller drops the frame rather than blocking.
	ErrWriteBackpressure = errors.New("session: outbound queue full")
	// ErrSessionClosed is returned by Session.Send once the session has
	// started closing.
	ErrSessionClosed = errors.New("session: already closed")
	// ErrNoHandler is returned by Registry.Dispatch when no registered
	// handler claims a frame's endpoint and type.
	ErrNoHandler = errors.New("session: no handler for frame")
)
