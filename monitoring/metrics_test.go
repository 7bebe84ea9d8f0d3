package monitoring

import (
	"strings"
	"testing"
)

func TestMetricsCollectorCounters(t *testing.T) {
	mc := NewMetricsCollector()
	mc.IncrCounter(MetricPredictions, 1)
	mc.IncrCounter(MetricPredictions, 2)

	metric, err := mc.GetMetric(MetricPredictions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metric.Value != 3 || metric.Type != MetricTypeCounter {
		t.Fatalf("unexpected counter: %+v", metric)
	}
	if _, err := mc.GetMetric("missing"); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

func TestMetricsCollectorGaugesAndExport(t *testing.T) {
	mc := NewMetricsCollector()
	mc.SetGauge(MetricTrainingMSE, 10)
	mc.SetGauge(MetricTrainingMSE, 4.5)
	mc.IncrCounter(MetricTrainings, 1)

	snapshot := mc.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(snapshot))
	}
	if snapshot[0].Name != MetricTrainingMSE || snapshot[0].Value != 4.5 {
		t.Fatalf("unexpected snapshot order or value: %+v", snapshot)
	}

	text := mc.ExportPrometheus()
	for _, want := range []string{
		"# TYPE carprice_training_mse gauge",
		"carprice_training_mse 4.5",
		"carprice_trainings_total 1",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in export:\n%s", want, text)
		}
	}

	stats := mc.GetSystemStats()
	if _, ok := stats["goroutines"]; !ok {
		t.Fatalf("expected goroutine count in %v", stats)
	}
}
