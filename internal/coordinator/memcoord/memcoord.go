// Package memcoord is an in-process Coordinator used by unit tests and
// single-node development mode: ephemeral/persistent nodes and watches are
// kept in a plain map instead of round-tripping to ZooKeeper.
package memcoord

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/schemacore/registry/internal/coordinator"
)

type node struct {
	data    []byte
	version int32
}

// Coordinator is a single-process, mutex-guarded implementation of
// coordinator.Coordinator. It is not durable and not shared across
// processes; it exists purely to exercise MasterElector and IdAllocator in
// tests without a real ZooKeeper ensemble.
type Coordinator struct {
	mu       sync.Mutex
	nodes    map[string]*node
	children map[string]map[string]struct{} // parent path -> set of ephemeral child names
	watchers map[string][]chan coordinator.ChildrenEvent
	closed   bool
}

// New creates an empty in-memory Coordinator.
func New() *Coordinator {
	return &Coordinator{
		nodes:    make(map[string]*node),
		children: make(map[string]map[string]struct{}),
		watchers: make(map[string][]chan coordinator.ChildrenEvent),
	}
}

func (c *Coordinator) EnsureNamespace(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[path]; !ok {
		c.nodes[path] = &node{}
	}
	return nil
}

func (c *Coordinator) Get(_ context.Context, path string) ([]byte, int32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[path]
	if !ok {
		return nil, 0, false, nil
	}
	data := make([]byte, len(n.data))
	copy(data, n.data)
	return data, n.version, true, nil
}

func (c *Coordinator) Create(_ context.Context, path string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[path]; ok {
		return &coordinator.VersionConflictError{Path: path}
	}
	c.nodes[path] = &node{data: append([]byte(nil), data...), version: 0}
	return nil
}

func (c *Coordinator) CompareAndSet(_ context.Context, path string, data []byte, version int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[path]
	if !ok || n.version != version {
		return &coordinator.VersionConflictError{Path: path}
	}
	n.data = append([]byte(nil), data...)
	n.version++
	return nil
}

type ephemeralHandle struct {
	c      *Coordinator
	parent string
	name   string
}

func (h *ephemeralHandle) Close() error {
	h.c.removeChild(h.parent, h.name)
	return nil
}

func (c *Coordinator) RegisterEphemeral(_ context.Context, path string, data []byte) (coordinator.SessionHandle, error) {
	parent, name := splitPath(path)

	c.mu.Lock()
	if c.children[parent] == nil {
		c.children[parent] = make(map[string]struct{})
	}
	c.children[parent][name] = struct{}{}
	c.nodes[path] = &node{data: append([]byte(nil), data...)}
	c.mu.Unlock()

	c.notify(parent)
	return &ephemeralHandle{c: c, parent: parent, name: name}, nil
}

func (c *Coordinator) removeChild(parent, name string) {
	c.mu.Lock()
	if set, ok := c.children[parent]; ok {
		delete(set, name)
	}
	delete(c.nodes, parent+"/"+name)
	c.mu.Unlock()
	c.notify(parent)
}

func (c *Coordinator) WatchChildren(ctx context.Context, path string) (<-chan coordinator.ChildrenEvent, error) {
	ch := make(chan coordinator.ChildrenEvent, 1)

	c.mu.Lock()
	c.watchers[path] = append(c.watchers[path], ch)
	ch <- coordinator.ChildrenEvent{Children: c.childrenLocked(path)}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		watchers := c.watchers[path]
		for i, w := range watchers {
			if w == ch {
				c.watchers[path] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (c *Coordinator) childrenLocked(path string) []string {
	set := c.children[path]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (c *Coordinator) notify(path string) {
	c.mu.Lock()
	watchers := append([]chan coordinator.ChildrenEvent(nil), c.watchers[path]...)
	children := c.childrenLocked(path)
	c.mu.Unlock()

	for _, w := range watchers {
		select {
		case w <- coordinator.ChildrenEvent{Children: children}:
		default:
		}
	}
}

func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, watchers := range c.watchers {
		for _, w := range watchers {
			close(w)
		}
	}
	c.watchers = nil
	return nil
}

func splitPath(path string) (parent, name string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}
