// Package registry implements Registry (spec §4.4): the public schema
// registry operations, master-or-forward routing, and compatibility
// gating, sitting on top of LogBackedStore, IdAllocator, and Forwarder.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/schemacore/registry/internal/cluster"
	"github.com/schemacore/registry/internal/coordinator"
	"github.com/schemacore/registry/internal/dialect"
	"github.com/schemacore/registry/internal/forwarder"
	"github.com/schemacore/registry/internal/logstore"
	"github.com/schemacore/registry/internal/wire"
)

// LatestVersion is the sentinel passed to GetByVersion to request a
// subject's highest registered version.
const LatestVersion int32 = -1

// idAllocator is the subset of *allocator.Allocator that Registry needs;
// declared locally to avoid import cycles and to make SetMaster's
// dependency on priming explicit. It is an alias so that factories written
// in other packages with an identical interface literal satisfy
// allocatorFactory.
type idAllocator = interface {
	Next(ctx context.Context, maxIdInStore int32) (int32, error)
}

// allocatorFactory builds a fresh allocator bound to the coordinator,
// primed against the current maxIdInStore. Injected so tests can supply
// a fake allocator without a real Coordinator round-trip.
type allocatorFactory func(ctx context.Context, coord coordinator.Coordinator, maxIdInStore int32, logger *slog.Logger) (idAllocator, error)

// Forwarder is the capability Registry delegates mutating requests to
// when this node is not the master (spec §4.5). Lookup and other reads
// never forward — spec §2's data flow serves reads from the local
// materialized view regardless of master status, and followers may lag
// the log (spec §1 Non-goals) — so only the register path is delegated.
type Forwarder interface {
	ForwardRegister(ctx context.Context, masterHost string, masterPort int, subject, schemaText string, headers map[string]string) (id int32, err error)
}

// MetricsReporter is the metrics capability Registry drives (spec §6's
// master-slave-role gauge plus registration-outcome counters).
type MetricsReporter interface {
	SetMasterRole(isMaster bool)
	RecordRegistration(outcome string)
}

// Config carries startup configuration Registry needs (spec §6).
type Config struct {
	SelfNodeID   string
	DefaultLevel wire.CompatibilityLevel
}

// Registry is the core schema registry service.
type Registry struct {
	cfg       Config
	store     *logstore.Store
	dialect   dialect.Dialect
	coord     coordinator.Coordinator
	forwarder Forwarder
	metrics   MetricsReporter
	logger    *slog.Logger
	newAllocator allocatorFactory

	masterLock     sync.RWMutex
	masterIdentity *cluster.Identity
	isMasterFlag   bool
	allocator      idAllocator
}

// New constructs a Registry. newAllocator is typically allocator.Prime
// wrapped to satisfy allocatorFactory; it is a constructor parameter so
// tests can inject an in-memory stand-in.
func New(cfg Config, store *logstore.Store, d dialect.Dialect, coord coordinator.Coordinator, fwd Forwarder, m MetricsReporter, newAllocator allocatorFactory, logger *slog.Logger) *Registry {
	r := &Registry{
		cfg:          cfg,
		store:        store,
		dialect:      d,
		coord:        coord,
		forwarder:    fwd,
		metrics:      m,
		logger:       logger,
		newAllocator: newAllocator,
	}
	store.SetListener(r)
	return r
}

// OnSchema implements logstore.ApplyListener. Index maintenance for
// guidToSchemaKey/schemaHashToGuid/maxIdInStore lives in logstore itself
// (spec §3's derived indexes are rebuilt purely from the log); this hook
// exists so Registry can react to applied schema writes without the store
// holding a back-reference into Registry (spec §9).
func (r *Registry) OnSchema(v wire.Value) {
	if r.logger != nil {
		r.logger.Debug("registry: applied schema record", "subject", v.Subject, "version", v.Version, "id", v.ID)
	}
}

// OnConfig implements logstore.ApplyListener.
func (r *Registry) OnConfig(v wire.Value) {
	if r.logger != nil {
		r.logger.Debug("registry: applied config record", "subject", v.Subject, "level", v.Level)
	}
}

// SetMaster is MasterElector's notification capability (spec §4.2).
// identity is nil when no eligible node currently exists.
func (r *Registry) SetMaster(ctx context.Context, identity *cluster.Identity) error {
	r.masterLock.Lock()
	defer r.masterLock.Unlock()

	r.masterIdentity = identity

	if identity == nil || identity.NodeID != r.cfg.SelfNodeID {
		wasMaster := r.isMasterFlag
		r.isMasterFlag = false
		r.allocator = nil
		if wasMaster && r.metrics != nil {
			r.metrics.SetMasterRole(false)
		}
		return nil
	}

	if err := r.store.WaitUntilBootstrapCompletes(ctx); err != nil {
		return fmt.Errorf("registry: set master: %w", err)
	}

	a, err := r.newAllocator(ctx, r.coord, r.store.MaxIdInStore(), r.logger)
	if err != nil {
		return fmt.Errorf("registry: set master: prime allocator: %w", err)
	}

	r.allocator = a
	r.isMasterFlag = true
	if r.metrics != nil {
		r.metrics.SetMasterRole(true)
	}
	return nil
}

func (r *Registry) currentMaster() (isMaster bool, identity *cluster.Identity) {
	r.masterLock.RLock()
	defer r.masterLock.RUnlock()
	return r.isMasterFlag, r.masterIdentity
}

// Register implements register(subject, schema) from spec §4.4's
// registration algorithm.
func (r *Registry) Register(ctx context.Context, subject, schemaText string, headers map[string]string) (int32, error) {
	isMaster, master := r.currentMaster()
	if !isMaster {
		if master == nil {
			return 0, ErrUnknownMaster
		}
		id, err := r.forwarder.ForwardRegister(ctx, master.Host, master.Port, subject, schemaText, headers)
		if err != nil {
			return 0, mapForwardingError(err)
		}
		return id, nil
	}
	return r.registerLocal(ctx, subject, schemaText)
}

func (r *Registry) registerLocal(ctx context.Context, subject, schemaText string) (int32, error) {
	canonical, err := r.dialect.Canonicalize(schemaText)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordRegistration("invalid_schema")
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	var carriedID *int32
	if sis, ok := r.store.LookupByHash(canonical); ok {
		if _, exists := sis.VersionBySubject[subject]; exists {
			if r.metrics != nil {
				r.metrics.RecordRegistration("idempotent_noop")
			}
			return sis.ID, nil
		}
		id := sis.ID
		carriedID = &id
	}

	versions, err := r.getAllVersionsLocal(subject)
	if err != nil {
		return 0, err
	}
	var latest *wire.Value
	if len(versions) > 0 {
		latest = &versions[len(versions)-1]
	}
	newVersion := int32(1)
	if latest != nil {
		newVersion = latest.Version + 1
	}

	if latest != nil {
		ok, messages := r.dialect.IsCompatible(r.effectiveLevel(subject), canonical, latest.Schema)
		if !ok {
			if r.metrics != nil {
				r.metrics.RecordRegistration("incompatible")
			}
			return 0, fmt.Errorf("%w: %v", ErrIncompatibleSchema, messages)
		}
	}

	var id int32
	if carriedID != nil {
		id = *carriedID
	} else {
		id, err = r.allocator.Next(ctx, r.store.MaxIdInStore())
		if err != nil {
			if r.metrics != nil {
				r.metrics.RecordRegistration("store_error")
			}
			return 0, fmt.Errorf("%w: %v", ErrStore, err)
		}
	}

	value := wire.NewSchemaValue(subject, newVersion, id, canonical)
	if err := r.store.Append(ctx, wire.SchemaKey(subject, newVersion), value); err != nil {
		if r.metrics != nil {
			r.metrics.RecordRegistration("store_error")
		}
		return 0, mapStoreError(err)
	}

	if r.metrics != nil {
		r.metrics.RecordRegistration("registered")
	}
	return id, nil
}

// Lookup implements lookup(subject, schema): it serves from the local
// materialized view regardless of master status (read operations never
// forward).
func (r *Registry) Lookup(_ context.Context, subject, schemaText string) (*wire.Value, error) {
	canonical, err := r.dialect.Canonicalize(schemaText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	sis, ok := r.store.LookupByHash(canonical)
	if !ok {
		return nil, nil
	}
	version, ok := sis.VersionBySubject[subject]
	if !ok {
		return nil, nil
	}
	v, ok := r.store.Get(wire.SchemaKey(subject, version))
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// GetByVersion implements get(subject, version), where version ==
// LatestVersion requests the highest registered version.
func (r *Registry) GetByVersion(_ context.Context, subject string, version int32) (*wire.Value, error) {
	if version == LatestVersion {
		return r.GetLatestVersion(context.Background(), subject)
	}
	v, ok := r.store.Get(wire.SchemaKey(subject, version))
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// GetByID implements get(id): the canonical schema string for id, or
// (\"\", false) if absent.
func (r *Registry) GetByID(_ context.Context, id int32) (string, bool, error) {
	key, ok := r.store.SchemaKeyForID(id)
	if !ok {
		return "", false, nil
	}
	v, ok := r.store.Get(key)
	if !ok {
		return "", false, nil
	}
	return v.Schema, true, nil
}

// ListSubjects implements listSubjects().
func (r *Registry) ListSubjects(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, k := range r.store.GetAllKeys() {
		if k.Kind == wire.KeyKindSchema {
			seen[k.Subject] = struct{}{}
		}
	}
	subjects := make([]string, 0, len(seen))
	for s := range seen {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// GetAllVersions implements getAllVersions(subject): schemas ordered by
// version ascending.
func (r *Registry) GetAllVersions(_ context.Context, subject string) ([]wire.Value, error) {
	return r.getAllVersionsLocal(subject)
}

func (r *Registry) getAllVersionsLocal(subject string) ([]wire.Value, error) {
	return r.store.GetAll(wire.SchemaKey(subject, 1), wire.SchemaKey(subject, math.MaxInt32)), nil
}

// GetLatestVersion implements getLatestVersion(subject).
func (r *Registry) GetLatestVersion(_ context.Context, subject string) (*wire.Value, error) {
	versions, err := r.getAllVersionsLocal(subject)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	v := versions[len(versions)-1]
	return &v, nil
}

// UpdateCompatibility implements updateCompatibility(subject?, level). A
// nil subject targets the cluster-wide default. Per spec §9(b), this
// surfaces UnknownMaster on a follower rather than forwarding.
func (r *Registry) UpdateCompatibility(ctx context.Context, subject *string, level wire.CompatibilityLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%w: invalid compatibility level %q", ErrStore, level)
	}

	isMaster, _ := r.currentMaster()
	if !isMaster {
		return ErrUnknownMaster
	}

	key := wire.GlobalConfigKey()
	if subject != nil {
		key = wire.ConfigKey(*subject, true)
	}
	value := wire.NewConfigValue(level)

	if err := r.store.Append(ctx, key, value); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// GetCompatibility implements getCompatibility(subject?). A nil subject
// returns the cluster-wide default config (or the startup default if
// never configured); a present subject inherits the cluster default when
// it has no subject-level config of its own (spec §9, Open Question a).
func (r *Registry) GetCompatibility(_ context.Context, subject *string) (wire.CompatibilityLevel, error) {
	if subject == nil {
		if v, ok := r.store.Get(wire.GlobalConfigKey()); ok {
			return v.Level, nil
		}
		return r.cfg.DefaultLevel, nil
	}
	return r.effectiveLevel(*subject), nil
}

// effectiveLevel implements effectiveLevel(subject) from spec §4.4:
// subject-level config, else cluster-wide default, else the startup
// default.
func (r *Registry) effectiveLevel(subject string) wire.CompatibilityLevel {
	if v, ok := r.store.Get(wire.ConfigKey(subject, true)); ok {
		return v.Level
	}
	if v, ok := r.store.Get(wire.GlobalConfigKey()); ok {
		return v.Level
	}
	return r.cfg.DefaultLevel
}

// ListVersionsForID is a supplemental, read-only query (not a spec.md
// requirement): every (subject, version) pair currently bound to id.
func (r *Registry) ListVersionsForID(id int32) ([]wire.Key, error) {
	key, ok := r.store.SchemaKeyForID(id)
	if !ok {
		return nil, nil
	}
	sis, ok := r.store.LookupByHash(mustGetSchema(r.store, key))
	if !ok {
		return nil, nil
	}
	keys := make([]wire.Key, 0, len(sis.VersionBySubject))
	for subject, version := range sis.VersionBySubject {
		keys = append(keys, wire.SchemaKey(subject, version))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys, nil
}

func mustGetSchema(store *logstore.Store, key wire.Key) string {
	v, ok := store.Get(key)
	if !ok {
		return ""
	}
	return v.Schema
}

func mapForwardingError(err error) error {
	if errors.Is(err, forwarder.ErrIncompatibleSchema) {
		return fmt.Errorf("%w: %v", ErrIncompatibleSchema, err)
	}
	return fmt.Errorf("%w: %v", ErrForwarding, err)
}

func mapStoreError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}

func isTimeout(err error) bool {
	return err != nil && (errors.Is(err, logstore.ErrBootstrapTimeout) || errors.Is(err, logstore.ErrWriteTimeout))
}
