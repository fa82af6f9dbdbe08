package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mediaflow/internal/events"
	"mediaflow/internal/metrics"
)

func TestExecutionLifecycleCounters(t *testing.T) {
	m := metrics.New()
	m.ExecutionStarted()
	m.ExecutionStarted()
	m.ExecutionFinished("completed")

	if got := gather(t, m, "mediaflow_active_executions", ""); got != 1 {
		t.Fatalf("expected 1 active execution, got %v", got)
	}
	if got := gather(t, m, "mediaflow_executions_total", "completed"); got != 1 {
		t.Fatalf("expected 1 completed execution, got %v", got)
	}
	if got := gather(t, m, "mediaflow_executions_total", "cancelled"); got != 0 {
		t.Fatalf("expected cancelled counter pre-initialised to 0, got %v", got)
	}
}

func TestBroadcasterRecorder(t *testing.T) {
	m := metrics.New()
	b := events.NewBroadcaster(1, events.WithRecorder(m))

	_, unsubscribeA := b.Subscribe(0)
	defer unsubscribeA()
	_, unsubscribeB := b.Subscribe(0)
	defer unsubscribeB()

	if got := gather(t, m, "mediaflow_event_observers", ""); got != 2 {
		t.Fatalf("expected 2 observers, got %v", got)
	}

	b.Publish(events.New(events.TypeLog, 1, nil))
	b.Publish(events.New(events.TypeLog, 1, nil))

	if got := gather(t, m, "mediaflow_events_dropped_total", ""); got != 2 {
		t.Fatalf("expected 2 dropped events, got %v", got)
	}
	if got := gather(t, m, "mediaflow_event_observers", ""); got != 0 {
		t.Fatalf("expected observers gauge to reach 0, got %v", got)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	m := metrics.New()
	m.ItemProcessed(metrics.ItemFailed)
	m.ObserveStage("download", 1500*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		`mediaflow_items_total{status="failed"} 1`,
		`mediaflow_stage_duration_seconds_count{stage="download"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in exposition output", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.ExecutionStarted()
	m.ExecutionFinished("failed")
	m.ItemProcessed(metrics.ItemCompleted)
	m.ObserveStage("scan", time.Second)
	m.ObserversChanged(3)
	m.EventDropped()
}

// gather returns the value of the named metric, matching the status label
// when one is given.
func gather(t *testing.T, m *metrics.Metrics, name, status string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if status != "" {
				matched := false
				for _, label := range metric.GetLabel() {
					if label.GetName() == "status" && label.GetValue() == status {
						matched = true
					}
				}
				if !matched {
					continue
				}
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s{status=%q} not found", name, status)
	return 0
}
