// Package zk implements coordinator.Coordinator against a ZooKeeper
// ensemble, matching the kafkastore.zk.session.timeout.ms configuration
// key named in spec §6. It is built on github.com/go-zookeeper/zk, the
// standard Go client for this coordination service.
package zk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/schemacore/registry/internal/coordinator"
)

// Coordinator adapts a *zk.Conn to coordinator.Coordinator.
type Coordinator struct {
	conn *zk.Conn
}

// Connect dials the given ZooKeeper ensemble with the given session timeout.
func Connect(servers []string, sessionTimeout time.Duration) (*Coordinator, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("zk: connect: %w", err)
	}
	return &Coordinator{conn: conn}, nil
}

func (c *Coordinator) EnsureNamespace(_ context.Context, path string) error {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	cur := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		cur += "/" + p
		exists, _, err := c.conn.Exists(cur)
		if err != nil {
			return fmt.Errorf("zk: exists %s: %w", cur, err)
		}
		if exists {
			continue
		}
		_, err = c.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return fmt.Errorf("zk: create %s: %w", cur, err)
		}
	}
	return nil
}

func (c *Coordinator) Get(_ context.Context, path string) ([]byte, int32, bool, error) {
	data, stat, err := c.conn.Get(path)
	if err == zk.ErrNoNode {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("zk: get %s: %w", path, err)
	}
	return data, stat.Version, true, nil
}

func (c *Coordinator) Create(_ context.Context, path string, data []byte) error {
	_, err := c.conn.Create(path, data, 0, zk.WorldACL(zk.PermAll))
	if err == zk.ErrNodeExists {
		return &coordinator.VersionConflictError{Path: path}
	}
	if err != nil {
		return fmt.Errorf("zk: create %s: %w", path, err)
	}
	return nil
}

func (c *Coordinator) CompareAndSet(_ context.Context, path string, data []byte, version int32) error {
	_, err := c.conn.Set(path, data, version)
	if err == zk.ErrBadVersion {
		return &coordinator.VersionConflictError{Path: path}
	}
	if err != nil {
		return fmt.Errorf("zk: set %s: %w", path, err)
	}
	return nil
}

type ephemeralHandle struct {
	conn *zk.Conn
	path string
}

func (h *ephemeralHandle) Close() error {
	// Version -1 matches any version, mirroring zk's usual delete-without-CAS idiom.
	err := h.conn.Delete(h.path, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("zk: delete %s: %w", h.path, err)
	}
	return nil
}

func (c *Coordinator) RegisterEphemeral(_ context.Context, path string, data []byte) (coordinator.SessionHandle, error) {
	_, err := c.conn.Create(path, data, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, fmt.Errorf("zk: create ephemeral %s: %w", path, err)
	}
	return &ephemeralHandle{conn: c.conn, path: path}, nil
}

func (c *Coordinator) WatchChildren(ctx context.Context, path string) (<-chan coordinator.ChildrenEvent, error) {
	out := make(chan coordinator.ChildrenEvent, 1)

	go func() {
		defer close(out)
		for {
			children, _, events, err := c.conn.ChildrenW(path)
			if err != nil {
				select {
				case out <- coordinator.ChildrenEvent{Err: fmt.Errorf("zk: children %s: %w", path, err)}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- coordinator.ChildrenEvent{Children: children}:
			case <-ctx.Done():
				return
			}
			select {
			case <-events:
				// loop and re-read children
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (c *Coordinator) Close() error {
	c.conn.Close()
	return nil
}
