// Package logclient defines the capability LogBackedStore needs from the
// underlying partitioned, ordered, replayable log (spec §2's LogClient).
package logclient

import "context"

// Record is a single decoded log entry delivered to a subscriber.
type Record struct {
	Offset int64
	Key    []byte
	Value  []byte
}

// LogClient appends to and tails a single-partition, ordered, replayable
// log topic, delivering each record at least once. Implementations retry
// transient errors internally; only permanent failures should be returned
// from Produce or sent on the error channel from Subscribe.
type LogClient interface {
	// Produce appends a record and returns the offset the log assigned it.
	Produce(ctx context.Context, key, value []byte) (offset int64, err error)

	// Subscribe starts tailing the topic from fromOffset (inclusive) and
	// delivers records in log order on the returned channel. The error
	// channel carries at most one permanent failure before both channels
	// close; transient errors are retried internally and never surface.
	Subscribe(ctx context.Context, fromOffset int64) (<-chan Record, <-chan error)

	// Close releases the client's resources.
	Close() error
}
