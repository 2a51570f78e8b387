package elector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schemacore/registry/internal/cluster"
	"github.com/schemacore/registry/internal/coordinator/memcoord"
)

type fakeRegistry struct {
	mu       sync.Mutex
	winners  []*cluster.Identity
	notified chan struct{}
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{notified: make(chan struct{}, 16)}
}

func (f *fakeRegistry) SetMaster(_ context.Context, identity *cluster.Identity) error {
	f.mu.Lock()
	f.winners = append(f.winners, identity)
	f.mu.Unlock()
	f.notified <- struct{}{}
	return nil
}

func (f *fakeRegistry) last() *cluster.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.winners) == 0 {
		return nil
	}
	return f.winners[len(f.winners)-1]
}

func TestElector_SingleEligibleNodeWins(t *testing.T) {
	coord := memcoord.New()
	reg := newFakeRegistry()
	identity := cluster.Identity{NodeID: "node-a", Host: "a", Port: 1, Eligible: true}
	e := New(coord, identity, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go e.Run(ctx)

	waitForNotification(t, reg)
	require.NotNil(t, reg.last())
	require.Equal(t, "node-a", reg.last().NodeID)
}

func TestElector_LowestNodeIDWinsAmongEligible(t *testing.T) {
	coord := memcoord.New()
	regB := newFakeRegistry()

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	eA := New(coord, cluster.Identity{NodeID: "node-b", Eligible: true}, newFakeRegistry(), nil)
	go eA.Run(ctxA)

	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()
	eB := New(coord, cluster.Identity{NodeID: "node-a", Eligible: true}, regB, nil)
	go eB.Run(ctxB)

	waitForNotification(t, regB)
	waitUntil(t, func() bool {
		last := regB.last()
		return last != nil && last.NodeID == "node-a"
	})
}

func TestElector_NonEligibleNeverWins(t *testing.T) {
	coord := memcoord.New()
	reg := newFakeRegistry()
	identity := cluster.Identity{NodeID: "node-a", Eligible: false}
	e := New(coord, identity, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	waitForNotification(t, reg)
	require.Nil(t, reg.last())
}

func waitForNotification(t *testing.T, reg *fakeRegistry) {
	t.Helper()
	select {
	case <-reg.notified:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SetMaster notification")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
