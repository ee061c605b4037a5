package model

import "errors"

var (
	// ErrProtocolFraming is returned when a frame cannot be decoded.
	ErrProtocolFraming = errors.New("protocol framing error")
	// ErrTransportIO wraps socket failures and send/receive timeouts.
	ErrTransportIO = errors.New("transport i/o error")
	// ErrNotConnected is returned when the peer is gone or was never connected.
	ErrNotConnected = errors.New("not connected")
	// ErrSetupFailure is logged when a preparation group fails to initialize.
	ErrSetupFailure = errors.New("setup failure")
	// ErrDataSource is returned when a data-driven test has no usable rows.
	ErrDataSource = errors.New("data source yielded no rows")
	// ErrRemoteHashMismatch reports that a remote source differs from the local one.
	ErrRemoteHashMismatch = errors.New("remote source hash mismatch")
	// ErrServerFault carries a failure of the server's background loop.
	ErrServerFault = errors.New("server loop failed")
	// ErrUnknownCommand is returned for commands a peer does not handle.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrSessionClosed is returned to callers waiting on a reply when the agent stops.
	ErrSessionClosed = errors.New("session closed")
	// ErrUnknownFunction is returned by CallFunction for unregistered targets.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrInvalidSourcePath is returned when a source path is absolute or leaves the sources root.
	ErrInvalidSourcePath = errors.New("source path outside sources root")
)
