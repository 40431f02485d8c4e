package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// TransportError represents a backend-transport fault (spawn, write, read,
// deadline). Retriable faults let the host try the remote backend again on
// the next call; either way the current call falls back to the local
// implementation so no event is dropped.
type TransportError struct {
	Op        string // Operation that failed (e.g. "spawn", "write", "read")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) IsRetriable() bool {
	return e.Retriable
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new retriable transport error
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Retriable: true}
}

// NewFatalTransportError creates a non-retriable transport error
func NewFatalTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Retriable: false}
}

// ProtocolError represents an invalid wire payload from a remote backend.
// Never retriable: the remote implementation is broken, not the link.
type ProtocolError struct {
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "protocol error: " + e.Detail
	}
	return "protocol error [" + e.Detail + "]: " + e.Err.Error()
}

func (e *ProtocolError) IsRetriable() bool {
	return false
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrBackendUnavailable is returned when no remote backend is configured
	// or the executable is missing. Usually retriable after a config reload.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnknownEvent is returned by the wire codec for an unrecognized
	// event payload. Not retriable.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrUnknownAction is returned by the wire codec for an unrecognized
	// action payload. Not retriable.
	ErrUnknownAction = errors.New("unknown action")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
