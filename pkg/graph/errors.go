package graph

import "errors"

var (
	// ErrNotConnected is returned when a statement is sent before Connect.
	ErrNotConnected = errors.New("graph client not connected")
	// ErrConnectionFailed wraps driver construction and connectivity failures.
	ErrConnectionFailed = errors.New("graph connection failed")
	// ErrStatementFailed wraps a statement the server rejected.
	ErrStatementFailed = errors.New("graph statement failed")
	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("invalid graph client config")
)
