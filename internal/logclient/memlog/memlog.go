// Package memlog provides an in-process logclient.LogClient: a single
// in-memory partition used in place of Kafka for local development and
// tests, so logstore and its callers never need a running broker.
package memlog

import (
	"context"
	"sync"

	"github.com/schemacore/registry/internal/logclient"
)

// Client is a single-partition, in-process LogClient. Produce delivers
// synchronously to every active Subscribe call before returning, so
// callers never need to sleep-and-poll for the tailer to catch up.
type Client struct {
	mu      sync.Mutex
	records []logclient.Record
	subs    []chan logclient.Record
	closed  bool
}

// New creates an empty Client.
func New() *Client {
	return &Client{}
}

func (c *Client) Produce(_ context.Context, key, value []byte) (int64, error) {
	c.mu.Lock()
	offset := int64(len(c.records))
	rec := logclient.Record{Offset: offset, Key: key, Value: value}
	c.records = append(c.records, rec)
	subs := append([]chan logclient.Record(nil), c.subs...)
	c.mu.Unlock()

	for _, ch := range subs {
		ch <- rec
	}
	return offset, nil
}

func (c *Client) Subscribe(ctx context.Context, fromOffset int64) (<-chan logclient.Record, <-chan error) {
	out := make(chan logclient.Record, 64)
	errs := make(chan error)

	c.mu.Lock()
	start := int(fromOffset)
	if start > len(c.records) {
		start = len(c.records)
	}
	backlog := append([]logclient.Record(nil), c.records[start:]...)
	c.subs = append(c.subs, out)
	c.mu.Unlock()

	go func() {
		for _, rec := range backlog {
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errs
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
