// Package logstore implements LogBackedStore (spec §4.1): a typed
// key-value view materialized from an append-only, single-partition log,
// with bootstrap, producer-with-readback writes, and a supervised tailer
// goroutine.
package logstore

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schemacore/registry/internal/logclient"
	"github.com/schemacore/registry/internal/wire"
)

// Sentinel errors for the store layer (spec §7).
var (
	ErrBootstrapTimeout = errors.New("logstore: bootstrap timeout")
	ErrWriteTimeout      = errors.New("logstore: write timeout")
	ErrStore             = errors.New("logstore: store error")
)

// ApplyListener lets Registry observe applied records without the store
// holding a back-reference into Registry (spec §9's cycle-breaking note).
type ApplyListener interface {
	OnSchema(v wire.Value)
	OnConfig(v wire.Value)
}

// SchemaIdAndSubjects mirrors spec §3's schemaHashToGuid value: one id
// bound to potentially many (subject -> version) occurrences of the same
// schema content.
type SchemaIdAndSubjects struct {
	ID               int32
	VersionBySubject map[string]int32
}

// Config configures timeouts for bootstrap and write operations.
type Config struct {
	BootstrapTimeout time.Duration
	WriteTimeout     time.Duration
}

// Store is LogBackedStore. The materialized view, and the three derived
// indexes from spec §3, are mutated only by the tailer goroutine; readers
// take the read lock.
type Store struct {
	cfg        Config
	client     logclient.LogClient
	serializer wire.Serializer
	logger     *slog.Logger

	listener ApplyListener

	mu               sync.RWMutex
	view             map[wire.Key]wire.Value
	guidToSchemaKey  map[int32]wire.Key
	schemaHashToGuid map[[md5.Size]byte]*SchemaIdAndSubjects
	maxIdInStore     int32

	waiterMu sync.Mutex
	applied  int64
	waiters  map[int64][]chan struct{}

	bootstrapDone chan struct{}

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New constructs a Store bound to client, encoding records with serializer.
// Call SetListener before Init if the caller wants apply notifications from
// the very first record; registry.New installs its listener on a store that
// has usually already been initialized, so bootstrap records are not reported
// to it.
func New(cfg Config, client logclient.LogClient, serializer wire.Serializer, logger *slog.Logger) *Store {
	return &Store{
		cfg:              cfg,
		client:           client,
		serializer:       serializer,
		logger:           logger,
		view:             make(map[wire.Key]wire.Value),
		guidToSchemaKey:  make(map[int32]wire.Key),
		schemaHashToGuid: make(map[[md5.Size]byte]*SchemaIdAndSubjects),
		maxIdInStore:     -1,
		waiters:          make(map[int64][]chan struct{}),
		applied:          -1,
		bootstrapDone:    make(chan struct{}),
	}
}

// SetListener installs the ApplyListener. It may be called before or after
// Init; records applied before it is installed are not reported.
func (s *Store) SetListener(l ApplyListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Init subscribes from offset 0, starts the tailer, appends a synthetic
// NoopKey record, and blocks until the tailer has applied that offset or
// the bootstrap timeout elapses.
func (s *Store) Init(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	records, errs := s.client.Subscribe(ctx, 0)

	group, gctx := errgroup.WithContext(ctx)
	s.group = group
	group.Go(func() error {
		return s.tail(gctx, records, errs)
	})

	bootCtx, bootCancel := context.WithTimeout(ctx, s.cfg.BootstrapTimeout)
	defer bootCancel()

	offset, err := s.produce(bootCtx, wire.NoopKeyValue(), wire.Value{})
	if err != nil {
		return fmt.Errorf("logstore: bootstrap produce: %w", err)
	}

	if err := s.awaitOffset(bootCtx, offset); err != nil {
		return fmt.Errorf("%w: offset %d not applied", ErrBootstrapTimeout, offset)
	}

	close(s.bootstrapDone)
	return nil
}

// WaitUntilBootstrapCompletes blocks until Init's bootstrap barrier has
// been reached. Idempotent: safe to call repeatedly, including after
// bootstrap already completed.
func (s *Store) WaitUntilBootstrapCompletes(ctx context.Context) error {
	select {
	case <-s.bootstrapDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Append serializes key/value, produces to the log, and blocks until the
// tailer has applied the resulting offset.
func (s *Store) Append(ctx context.Context, key wire.Key, value wire.Value) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	offset, err := s.produce(writeCtx, key, value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if err := s.awaitOffset(writeCtx, offset); err != nil {
		return fmt.Errorf("%w: offset %d not applied", ErrWriteTimeout, offset)
	}
	return nil
}

func (s *Store) produce(ctx context.Context, key wire.Key, value wire.Value) (int64, error) {
	var keyBytes, valueBytes []byte
	var err error
	if key.Kind == wire.KeyKindNoop {
		keyBytes, err = s.serializer.SerializeKey(key)
	} else {
		keyBytes, valueBytes, err = s.serializer.Serialize(key, value)
	}
	if err != nil {
		return 0, fmt.Errorf("serialize: %w", err)
	}
	offset, err := s.client.Produce(ctx, keyBytes, valueBytes)
	if err != nil {
		return 0, fmt.Errorf("produce: %w", err)
	}
	return offset, nil
}

// tail decodes records in log order, applies them to the materialized
// view, updates the derived indexes, and notifies anyone awaiting that
// offset. A record whose deserialization fails is logged and skipped.
func (s *Store) tail(ctx context.Context, records <-chan logclient.Record, errs <-chan error) error {
	for {
		select {
		case rec, ok := <-records:
			if !ok {
				return nil
			}
			s.apply(rec)
		case err, ok := <-errs:
			if !ok {
				continue
			}
			if err != nil {
				return fmt.Errorf("%w: tailer: %v", ErrStore, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Store) apply(rec logclient.Record) {
	key, value, err := s.serializer.Deserialize(rec.Key, rec.Value)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("logstore: skipping corrupt record", "offset", rec.Offset, "error", err)
		}
		s.markApplied(rec.Offset)
		return
	}

	if key.Kind != wire.KeyKindNoop {
		s.mu.Lock()
		s.view[key] = value
		if value.Kind == wire.ValueKindSchema {
			s.indexSchemaLocked(key, value)
		}
		listener := s.listener
		s.mu.Unlock()

		if listener != nil {
			switch value.Kind {
			case wire.ValueKindSchema:
				listener.OnSchema(value)
			case wire.ValueKindConfig:
				listener.OnConfig(value)
			}
		}
	}

	s.markApplied(rec.Offset)
}

// indexSchemaLocked updates guidToSchemaKey, schemaHashToGuid, and
// maxIdInStore for a freshly-applied SchemaValue. Callers hold s.mu.
func (s *Store) indexSchemaLocked(key wire.Key, value wire.Value) {
	s.guidToSchemaKey[value.ID] = key

	h := md5.Sum([]byte(value.Schema))
	sis, ok := s.schemaHashToGuid[h]
	if !ok {
		sis = &SchemaIdAndSubjects{ID: value.ID, VersionBySubject: make(map[string]int32)}
		s.schemaHashToGuid[h] = sis
	}
	sis.VersionBySubject[value.Subject] = value.Version

	if value.ID > s.maxIdInStore {
		s.maxIdInStore = value.ID
	}
}

func (s *Store) markApplied(offset int64) {
	s.waiterMu.Lock()
	defer s.waiterMu.Unlock()
	if offset <= s.applied {
		return
	}
	s.applied = offset
	for o, chans := range s.waiters {
		if o <= offset {
			for _, ch := range chans {
				close(ch)
			}
			delete(s.waiters, o)
		}
	}
}

func (s *Store) awaitOffset(ctx context.Context, offset int64) error {
	s.waiterMu.Lock()
	if s.applied >= offset {
		s.waiterMu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters[offset] = append(s.waiters[offset], ch)
	s.waiterMu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the current value for key, or false if absent.
func (s *Store) Get(key wire.Key) (wire.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.view[key]
	return v, ok
}

// GetAll returns values whose keys fall in [lo, hi] under Key.Less, in key order.
func (s *Store) GetAll(lo, hi wire.Key) []wire.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type kv struct {
		k wire.Key
		v wire.Value
	}
	matches := make([]kv, 0)
	for k, v := range s.view {
		if !k.Less(lo) && !hi.Less(k) {
			matches = append(matches, kv{k, v})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].k.Less(matches[j].k) })

	out := make([]wire.Value, len(matches))
	for i, m := range matches {
		out[i] = m.v
	}
	return out
}

// GetAllKeys returns every key currently in the materialized view, in key order.
func (s *Store) GetAllKeys() []wire.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]wire.Key, 0, len(s.view))
	for k := range s.view {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// MaxIdInStore returns the maximum schema id ever observed in the log, or -1.
func (s *Store) MaxIdInStore() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxIdInStore
}

// LookupByHash returns the id and subject/version occurrences already
// registered for the given raw schema text's MD5 digest.
func (s *Store) LookupByHash(schemaText string) (*SchemaIdAndSubjects, bool) {
	h := md5.Sum([]byte(schemaText))
	s.mu.RLock()
	defer s.mu.RUnlock()
	sis, ok := s.schemaHashToGuid[h]
	return sis, ok
}

// SchemaKeyForID resolves an id to its canonical (subject, version).
func (s *Store) SchemaKeyForID(id int32) (wire.Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.guidToSchemaKey[id]
	return k, ok
}

// Close stops the tailer and releases the log client.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	var groupErr error
	if s.group != nil {
		groupErr = s.group.Wait()
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if groupErr != nil && !errors.Is(groupErr, context.Canceled) {
		return fmt.Errorf("%w: tailer: %v", ErrStore, groupErr)
	}
	return nil
}
