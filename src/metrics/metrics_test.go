package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestRecordsStepsAndOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveStep("lookup", "AwaitingWindow", 1500*time.Millisecond)
	m.ObserveStep("lookup", "AwaitingWindow", 500*time.Millisecond)
	m.Outcome("lookup", "ok")
	m.Outcome("send", "WINDOW_NOT_FOUND")
	m.Capture("screen-grab")
	m.Recognition("accepted")
	done := m.Track()

	families := gather(t, reg)

	h := families["viber_agent_step_duration_seconds"]
	if h == nil || len(h.GetMetric()) != 1 {
		t.Fatalf("missing step histogram: %v", h)
	}
	hist := h.GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 2 || hist.GetSampleSum() != 2.0 {
		t.Errorf("unexpected histogram count=%d sum=%f", hist.GetSampleCount(), hist.GetSampleSum())
	}

	if ops := families["viber_agent_operations_total"]; ops == nil || len(ops.GetMetric()) != 2 {
		t.Errorf("expected two outcome series, got %v", ops)
	}
	if g := families["viber_agent_operations_in_flight"]; g.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Errorf("in-flight gauge should be 1")
	}
	done()
	if g := gather(t, reg)["viber_agent_operations_in_flight"]; g.GetMetric()[0].GetGauge().GetValue() != 0 {
		t.Errorf("in-flight gauge should return to 0")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStep("lookup", "Done", time.Second)
	m.Outcome("lookup", "ok")
	m.Capture("window-buffer")
	m.Recognition("failed")
	m.Track()()
}

func TestNewWithoutRegistry(t *testing.T) {
	if New(nil) == nil {
		t.Fatal("expected metrics with a private registry")
	}
}
