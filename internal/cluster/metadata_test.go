package cluster

import (
	"runtime"
	"testing"
)

func TestNewInfo(t *testing.T) {
	i := NewInfo("localhost", 8081, true)
	if i == nil {
		t.Fatal("expected non-nil Info")
	}

	meta := i.Metadata()
	if meta.NodeID == "" {
		t.Error("expected non-empty node ID")
	}
	if meta.GoVersion != runtime.Version() {
		t.Errorf("expected go version %s, got %s", runtime.Version(), meta.GoVersion)
	}
	if meta.StartTime.IsZero() {
		t.Error("expected start time to be set")
	}
}

func TestIdentity_MatchesConstructorArgs(t *testing.T) {
	i := NewInfo("10.0.0.1", 9090, true)
	id := i.Identity()

	if id.Host != "10.0.0.1" {
		t.Errorf("expected host 10.0.0.1, got %s", id.Host)
	}
	if id.Port != 9090 {
		t.Errorf("expected port 9090, got %d", id.Port)
	}
	if !id.Eligible {
		t.Error("expected eligible")
	}
	if id.NodeID != i.Metadata().NodeID {
		t.Error("expected identity NodeID to match metadata NodeID")
	}
}

func TestIdentity_Less_OrdersByNodeID(t *testing.T) {
	a := Identity{NodeID: "aaa"}
	b := Identity{NodeID: "bbb"}

	if !a.Less(b) {
		t.Error("expected aaa < bbb")
	}
	if b.Less(a) {
		t.Error("expected bbb not < aaa")
	}
}

func TestSetMaster_TogglesIsMaster(t *testing.T) {
	i := NewInfo("localhost", 8081, true)
	if i.IsMaster() {
		t.Error("expected not master initially")
	}

	i.SetMaster(true)
	if !i.IsMaster() {
		t.Error("expected master after SetMaster(true)")
	}

	i.SetMaster(false)
	if i.IsMaster() {
		t.Error("expected not master after SetMaster(false)")
	}
}

func TestUptime_Nonnegative(t *testing.T) {
	i := NewInfo("localhost", 8081, true)
	if i.Uptime() < 0 {
		t.Error("expected nonnegative uptime")
	}
}
