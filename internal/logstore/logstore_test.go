package logstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schemacore/registry/internal/logclient"
	"github.com/schemacore/registry/internal/wire"
)

// fakeLogClient is a single-partition in-memory LogClient used to drive
// logstore's bootstrap and tailing logic without a running broker.
type fakeLogClient struct {
	mu      sync.Mutex
	records []logclient.Record
	subs    []chan logclient.Record
	closed  bool
}

func newFakeLogClient() *fakeLogClient {
	return &fakeLogClient{}
}

func (f *fakeLogClient) Produce(_ context.Context, key, value []byte) (int64, error) {
	f.mu.Lock()
	offset := int64(len(f.records))
	rec := logclient.Record{Offset: offset, Key: key, Value: value}
	f.records = append(f.records, rec)
	subs := append([]chan logclient.Record(nil), f.subs...)
	f.mu.Unlock()

	for _, ch := range subs {
		ch <- rec
	}
	return offset, nil
}

func (f *fakeLogClient) Subscribe(ctx context.Context, fromOffset int64) (<-chan logclient.Record, <-chan error) {
	out := make(chan logclient.Record, 16)
	errs := make(chan error)

	f.mu.Lock()
	backlog := append([]logclient.Record(nil), f.records[min(int(fromOffset), len(f.records)):]...)
	f.subs = append(f.subs, out)
	f.mu.Unlock()

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

func (f *fakeLogClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newStore(t *testing.T) (*Store, *fakeLogClient) {
	t.Helper()
	client := newFakeLogClient()
	store := New(Config{BootstrapTimeout: time.Second, WriteTimeout: time.Second}, client, wire.JSONSerializer{}, nil)
	return store, client
}

func TestBootstrap_ThenAppendAndGet(t *testing.T) {
	store, client := newStore(t)
	_ = client

	err := store.Init(context.Background())
	require.NoError(t, err)

	require.NoError(t, store.WaitUntilBootstrapCompletes(context.Background()))

	key := wire.SchemaKey("orders", 1)
	value := wire.NewSchemaValue("orders", 1, 0, `"string"`)
	require.NoError(t, store.Append(context.Background(), key, value))

	got, ok := store.Get(key)
	require.True(t, ok)
	require.Equal(t, value, got)
	require.Equal(t, int32(0), store.MaxIdInStore())
}

func TestGetAll_RangeScanInKeyOrder(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.Init(context.Background()))

	for v := int32(1); v <= 3; v++ {
		k := wire.SchemaKey("widgets", v)
		val := wire.NewSchemaValue("widgets", v, v-1, `"string"`)
		require.NoError(t, store.Append(context.Background(), k, val))
	}

	all := store.GetAll(wire.SchemaKey("widgets", 1), wire.SchemaKey("widgets", 2))
	require.Len(t, all, 2)
	require.Equal(t, int32(1), all[0].Version)
	require.Equal(t, int32(2), all[1].Version)
}

func TestLookupByHash_ReusesIDAcrossSubjects(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.Init(context.Background()))

	schema := `"string"`
	require.NoError(t, store.Append(context.Background(), wire.SchemaKey("a", 1), wire.NewSchemaValue("a", 1, 5, schema)))
	require.NoError(t, store.Append(context.Background(), wire.SchemaKey("b", 1), wire.NewSchemaValue("b", 1, 5, schema)))

	sis, ok := store.LookupByHash(schema)
	require.True(t, ok)
	require.Equal(t, int32(5), sis.ID)
	require.Equal(t, int32(1), sis.VersionBySubject["a"])
	require.Equal(t, int32(1), sis.VersionBySubject["b"])
}
