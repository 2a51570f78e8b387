// Package allocator implements IdAllocator (spec §4.3): a batch-reservation
// protocol for handing out globally unique, densely packed schema ids
// against a persistent coordinator counter node, reconciled on startup
// with the maximum id already present in the log.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/schemacore/registry/internal/coordinator"
)

// CounterPath is the persistent coordination node storing the exclusive
// upper bound of the most recently reserved id batch.
const CounterPath = "/schema_id_counter"

// BatchSize is B in spec §4.3.
const BatchSize = 20

// retryBackoff is the sleep between compare-and-set retries during priming.
const retryBackoff = 50 * time.Millisecond

// ErrExhausted wraps an allocation failure that could not be resolved
// against the coordinator.
var ErrExhausted = errors.New("allocator: batch reservation failed")

// Allocator is IdAllocator. It is owned exclusively by the master session:
// Prime must be called once after a node wins the master lease, and Next
// must only be called by that same session.
type Allocator struct {
	coord  coordinator.Coordinator
	logger *slog.Logger

	mu      sync.Mutex
	current int32
	limit   int32 // exclusive upper bound of the batch currently in use
}

// New constructs an Allocator bound to coord. Prime must be called before Next.
func New(coord coordinator.Coordinator, logger *slog.Logger) *Allocator {
	return &Allocator{coord: coord, logger: logger}
}

// align rounds x up to the next multiple of b.
func align(x, b int32) int32 {
	if x <= 0 {
		return 0
	}
	return ((x + b - 1) / b) * b
}

// Prime runs the priming protocol from spec §4.3 against maxIdInStore,
// reserving (and recording as current) the first batch this session will
// issue ids from.
func (a *Allocator) Prime(ctx context.Context, maxIdInStore int32) error {
	l0 := align(maxIdInStore+1, BatchSize)

	data, version, exists, err := a.coord.Get(ctx, CounterPath)
	if err != nil {
		return fmt.Errorf("%w: read counter: %v", ErrExhausted, err)
	}

	if !exists {
		if err := a.coord.Create(ctx, CounterPath, encodeCounter(l0+BatchSize)); err != nil {
			if coordinator.IsVersionConflict(err) {
				// Another node raced us to create the node; fall through to the retry loop.
				return a.primeLoop(ctx, maxIdInStore)
			}
			return fmt.Errorf("%w: create counter: %v", ErrExhausted, err)
		}
		a.setBatchLocked(l0)
		return nil
	}

	uOld, err := decodeCounter(data)
	if err != nil {
		return fmt.Errorf("%w: decode counter: %v", ErrExhausted, err)
	}
	return a.reserveFrom(ctx, maxIdInStore, uOld, version)
}

// primeLoop re-reads the counter and retries the reservation, used when a
// Create raced against another node's Create.
func (a *Allocator) primeLoop(ctx context.Context, maxIdInStore int32) error {
	data, version, exists, err := a.coord.Get(ctx, CounterPath)
	if err != nil {
		return fmt.Errorf("%w: read counter: %v", ErrExhausted, err)
	}
	if !exists {
		return fmt.Errorf("%w: counter vanished during priming", ErrExhausted)
	}
	uOld, err := decodeCounter(data)
	if err != nil {
		return fmt.Errorf("%w: decode counter: %v", ErrExhausted, err)
	}
	return a.reserveFrom(ctx, maxIdInStore, uOld, version)
}

// reserveFrom implements spec §4.3 step 2: round U_old up if it is not
// batch-aligned, reconcile against maxIdInStore, and retry the
// version-guarded write until it succeeds.
func (a *Allocator) reserveFrom(ctx context.Context, maxIdInStore, uOld, version int32) error {
	for {
		if uOld%BatchSize != 0 {
			if a.logger != nil {
				a.logger.Warn("allocator: counter not batch-aligned, rounding up", "value", uOld, "batchSize", BatchSize)
			}
			uOld = align(uOld, BatchSize)
		}

		l := uOld
		if reconciled := align(maxIdInStore+1, BatchSize); reconciled > l {
			l = reconciled
		}

		err := a.coord.CompareAndSet(ctx, CounterPath, encodeCounter(l+BatchSize), version)
		if err == nil {
			a.setBatchLocked(l)
			return nil
		}
		if !coordinator.IsVersionConflict(err) {
			return fmt.Errorf("%w: compare-and-set counter: %v", ErrExhausted, err)
		}

		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		data, newVersion, exists, getErr := a.coord.Get(ctx, CounterPath)
		if getErr != nil {
			return fmt.Errorf("%w: read counter: %v", ErrExhausted, getErr)
		}
		if !exists {
			return fmt.Errorf("%w: counter vanished during priming", ErrExhausted)
		}
		uOld, err = decodeCounter(data)
		if err != nil {
			return fmt.Errorf("%w: decode counter: %v", ErrExhausted, err)
		}
		version = newVersion
	}
}

func (a *Allocator) setBatchLocked(lo int32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = lo
	a.limit = lo + BatchSize
}

// Next returns the next id in the current batch, reserving a new batch via
// the coordinator if the current one is exhausted.
func (a *Allocator) Next(ctx context.Context, maxIdInStore int32) (int32, error) {
	a.mu.Lock()
	if a.current < a.limit {
		id := a.current
		a.current++
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	if err := a.Prime(ctx, maxIdInStore); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.current
	a.current++
	return id, nil
}

func encodeCounter(u int32) []byte {
	return []byte(strconv.FormatInt(int64(u), 10))
}

func decodeCounter(data []byte) (int32, error) {
	v, err := strconv.ParseInt(string(data), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}
