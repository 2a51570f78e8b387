package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("Expected non-nil Metrics")
	}
	if m.MasterSlaveRole == nil {
		t.Error("Expected MasterSlaveRole to be initialized")
	}
	if m.LogAppends == nil {
		t.Error("Expected LogAppends to be initialized")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SetMasterRole(true)

	handler := m.Handler()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "master_slave_role 1") {
		t.Errorf("expected master_slave_role gauge at 1, got body: %s", body)
	}
}

func TestSetMasterRole_TogglesGauge(t *testing.T) {
	m := New()

	m.SetMasterRole(true)
	if got := testutil.ToFloat64(m.MasterSlaveRole); got != 1.0 {
		t.Errorf("expected 1.0 after SetMasterRole(true), got %v", got)
	}

	m.SetMasterRole(false)
	if got := testutil.ToFloat64(m.MasterSlaveRole); got != 0.0 {
		t.Errorf("expected 0.0 after SetMasterRole(false), got %v", got)
	}
}

func TestRecordLogAppend(t *testing.T) {
	m := New()
	m.RecordLogAppend("success", 5*time.Millisecond)
	m.RecordLogAppend("timeout", 10*time.Millisecond)
	// No panic, and both outcomes are distinct label values on the same vec.
}

func TestRecordCoordinatorRoundtrip(t *testing.T) {
	m := New()
	m.RecordCoordinatorRoundtrip("compare_and_set", "success", time.Millisecond)
}

func TestRecordRegistration(t *testing.T) {
	m := New()
	m.RecordRegistration("idempotent_noop")
}
