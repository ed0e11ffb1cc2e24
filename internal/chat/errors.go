package chat

import "errors"

var (
	// ErrNotAuthenticated is returned when an anonymous connection attempts
	// an operation that requires a bound user identity.
	ErrNotAuthenticated = errors.New("connection is not authenticated")

	// ErrAlreadyAuthenticated is returned on a second authenticate attempt.
	ErrAlreadyAuthenticated = errors.New("connection is already authenticated")

	// ErrNotSubscribed is returned when a connection posts to a channel it is
	// not currently live-subscribed to, persisted membership notwithstanding.
	ErrNotSubscribed = errors.New("connection is not subscribed to this channel")

	// ErrSessionClosed is returned for any operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrQueueFull is returned when a subscriber's outbound queue cannot
	// accept another frame without blocking.
	ErrQueueFull = errors.New("outbound queue is full")
)
