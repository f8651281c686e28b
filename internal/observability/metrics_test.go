package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics("test", reg)

	m.FetchOutcomes.WithLabelValues("found").Inc()
	m.FetchOutcomes.WithLabelValues("found").Inc()
	m.FetchOutcomes.WithLabelValues("failed").Inc()

	if got := testutil.ToFloat64(m.FetchOutcomes.WithLabelValues("found")); got != 2 {
		t.Errorf("expected 2 found, got %v", got)
	}
	if got := testutil.ToFloat64(m.FetchOutcomes.WithLabelValues("failed")); got != 1 {
		t.Errorf("expected 1 failed, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "test_poll_fetch_outcomes_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected test_poll_fetch_outcomes_total to be registered")
	}
}

func TestRecordCycle(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.CyclesTotal.WithLabelValues(CycleOK))
	RecordCycle(CycleOK, 250*time.Millisecond)

	if got := testutil.ToFloat64(DefaultMetrics.CyclesTotal.WithLabelValues(CycleOK)); got != before+1 {
		t.Errorf("expected %v ok cycles, got %v", before+1, got)
	}
	if testutil.ToFloat64(DefaultMetrics.LastSuccessfulCycle) == 0 {
		t.Error("expected last successful cycle timestamp to be set")
	}
}

func TestUpdateResultsSize(t *testing.T) {
	UpdateResultsSize(3)
	if got := testutil.ToFloat64(DefaultMetrics.ResultsSize); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}
}
