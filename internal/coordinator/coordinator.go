// Package coordinator defines the capability MasterElector and IdAllocator
// need from the external coordination service: ephemeral membership with
// session semantics, and persistent nodes with conditional updates (spec §2).
package coordinator

import (
	"context"
	"errors"
)

// ChildrenEvent is delivered whenever the set of children under a watched
// path changes (a node joined, left, or its session expired).
type ChildrenEvent struct {
	Children []string
	Err      error
}

// SessionHandle represents an ephemeral registration. Closing it removes
// the node immediately; if the process dies without closing it, the
// coordination service removes it when the underlying session expires.
type SessionHandle interface {
	Close() error
}

// Coordinator is the external, ephemeral-membership, version-guarded
// coordination service (e.g. ZooKeeper) that MasterElector and IdAllocator
// depend on.
type Coordinator interface {
	// EnsureNamespace creates path (and any missing parents) if absent.
	EnsureNamespace(ctx context.Context, path string) error

	// Get reads a persistent node's data and version. exists is false if
	// the node does not exist, in which case data and version are zero.
	Get(ctx context.Context, path string) (data []byte, version int32, exists bool, err error)

	// Create creates a persistent node with the given data. It fails if
	// the node already exists.
	Create(ctx context.Context, path string, data []byte) error

	// CompareAndSet writes data to path only if the node's current version
	// equals version. Implementations return a version-mismatch error the
	// caller can detect with IsVersionConflict.
	CompareAndSet(ctx context.Context, path string, data []byte, version int32) error

	// RegisterEphemeral creates an ephemeral node at path holding data,
	// scoped to the caller's session. The node disappears when the
	// returned handle is closed or the session expires.
	RegisterEphemeral(ctx context.Context, path string, data []byte) (SessionHandle, error)

	// WatchChildren streams the children of path, once immediately and
	// again on every subsequent change, until ctx is canceled.
	WatchChildren(ctx context.Context, path string) (<-chan ChildrenEvent, error)

	// Close releases the coordinator client's resources.
	Close() error
}

// VersionConflictError is returned by CompareAndSet when the supplied version
// no longer matches the node's current version.
type VersionConflictError struct {
	Path string
}

func (e *VersionConflictError) Error() string {
	return "coordinator: version conflict at " + e.Path
}

// IsVersionConflict reports whether err is (or wraps) a version conflict.
func IsVersionConflict(err error) bool {
	var vce *VersionConflictError
	return errors.As(err, &vce)
}
