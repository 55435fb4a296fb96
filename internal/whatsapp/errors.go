package whatsapp

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists is returned when creating an instance whose id is taken.
	ErrAlreadyExists = errors.New("instance already exists")
	// ErrNotFound is returned for lookups and deletions of unknown instances.
	ErrNotFound = errors.New("instance not found")
	// ErrMissingAPIKey is returned when a request carries no X-API-Key header.
	ErrMissingAPIKey = errors.New("api key not provided")
	// ErrInvalidAPIKey is returned when no instance owns the presented key.
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// NotReadyError rejects an operation that requires a connected instance.
// It carries the current status so callers can tell "awaiting pairing"
// apart from "disconnected" or "errored".
type NotReadyError struct {
	Status Status
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("instance not connected (status=%s)", e.Status)
}

// Message returns a user-facing description of the current status.
func (e *NotReadyError) Message() string {
	switch e.Status {
	case StatusQR:
		return "Awaiting QR code scan"
	case StatusError:
		return "Instance in error state"
	default:
		return "Instance disconnected"
	}
}

// ProxyConfigError marks a proxy configuration that cannot be turned into
// a transport descriptor. It is non-fatal: the instance connects without
// a proxy instead of failing outright.
type ProxyConfigError struct {
	Reason string
}

func (e *ProxyConfigError) Error() string {
	return "invalid proxy config: " + e.Reason
}

// ConnectError wraps a session establishment failure.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return "connect failed: " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError wraps a transmission failure reported by the protocol client.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return "send failed: " + e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }
