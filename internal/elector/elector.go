// Package elector implements MasterElector (spec §4.2): ephemeral
// membership registration plus a deterministic lowest-NodeID election
// over eligible candidates, notifying Registry.SetMaster of the winner.
package elector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/schemacore/registry/internal/cluster"
	"github.com/schemacore/registry/internal/coordinator"
)

// MembersPath is the parent node under which each eligible-or-not node
// registers an ephemeral child keyed by its NodeID.
const MembersPath = "/members"

// SetMaster is the notification capability spec §4.2 calls on transition;
// identity is nil when no eligible node currently exists.
type SetMaster interface {
	SetMaster(ctx context.Context, identity *cluster.Identity) error
}

// Elector is MasterElector.
type Elector struct {
	coord    coordinator.Coordinator
	identity cluster.Identity
	registry SetMaster
	logger   *slog.Logger
}

// New constructs an Elector for this node's identity, notifying registry
// of master transitions.
func New(coord coordinator.Coordinator, identity cluster.Identity, registry SetMaster, logger *slog.Logger) *Elector {
	return &Elector{coord: coord, identity: identity, registry: registry, logger: logger}
}

// Run registers this node's ephemeral identity and watches for membership
// changes until ctx is canceled, notifying registry on every election
// outcome change. It blocks until ctx is done or a permanent error occurs.
func (e *Elector) Run(ctx context.Context) error {
	if err := e.coord.EnsureNamespace(ctx, MembersPath); err != nil {
		return fmt.Errorf("elector: ensure namespace: %w", err)
	}

	data, err := json.Marshal(e.identity)
	if err != nil {
		return fmt.Errorf("elector: marshal identity: %w", err)
	}

	path := MembersPath + "/" + e.identity.NodeID
	handle, err := e.coord.RegisterEphemeral(ctx, path, data)
	if err != nil {
		return fmt.Errorf("elector: register ephemeral: %w", err)
	}
	defer handle.Close()

	events, err := e.coord.WatchChildren(ctx, MembersPath)
	if err != nil {
		return fmt.Errorf("elector: watch children: %w", err)
	}

	var lastWinner *cluster.Identity
	notified := false

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Err != nil {
				if e.logger != nil {
					e.logger.Error("elector: watch error", "error", ev.Err)
				}
				continue
			}

			winner, err := e.resolveWinner(ctx, ev.Children)
			if err != nil {
				if e.logger != nil {
					e.logger.Error("elector: resolve winner", "error", err)
				}
				continue
			}

			if notified && identityEqual(lastWinner, winner) {
				continue
			}
			lastWinner = winner
			notified = true

			if err := e.registry.SetMaster(ctx, winner); err != nil {
				if e.logger != nil {
					e.logger.Error("elector: SetMaster notification failed", "error", err)
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// resolveWinner reads every child's identity and returns the lowest-NodeID
// eligible candidate, or nil if none are eligible.
func (e *Elector) resolveWinner(ctx context.Context, children []string) (*cluster.Identity, error) {
	var eligible []cluster.Identity
	for _, name := range children {
		data, _, exists, err := e.coord.Get(ctx, MembersPath+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read member %s: %w", name, err)
		}
		if !exists {
			continue
		}
		var id cluster.Identity
		if err := json.Unmarshal(data, &id); err != nil {
			if e.logger != nil {
				e.logger.Warn("elector: skipping unparseable member", "name", name, "error", err)
			}
			continue
		}
		if id.Eligible {
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Less(eligible[j]) })
	winner := eligible[0]
	return &winner, nil
}

func identityEqual(a, b *cluster.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.NodeID == b.NodeID
}
