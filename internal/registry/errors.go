package registry

import "errors"

// Sentinel errors for the registry layer.
// These allow callers to check error types with errors.Is() instead of string matching.
var (
	// ErrInvalidSchema is returned when the dialect fails to canonicalize
	// the submitted schema text.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrIncompatibleSchema is returned when a new version violates the
	// subject's effective compatibility policy.
	ErrIncompatibleSchema = errors.New("incompatible schema")
	// ErrStore wraps a durable-store failure (log, serialization, coordinator).
	ErrStore = errors.New("store error")
	// ErrTimeout is returned when a bootstrap or write did not complete
	// within its configured deadline.
	ErrTimeout = errors.New("timeout")
	// ErrUnknownMaster is returned when a mutation is attempted while no
	// master is currently known.
	ErrUnknownMaster = errors.New("unknown master")
	// ErrForwarding wraps a network/HTTP failure contacting the master.
	ErrForwarding = errors.New("forwarding error")
	// ErrInitialization is returned for an unrecoverable failure during init.
	ErrInitialization = errors.New("initialization error")
)
