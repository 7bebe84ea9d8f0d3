package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

// 指标名称
const (
	MetricPredictions      = "carprice_predictions_total"
	MetricPredictionErrors = "carprice_prediction_errors_total"
	MetricTrainings        = "carprice_trainings_total"
	MetricTrainingErrors   = "carprice_training_errors_total"
	MetricModelReloads     = "carprice_model_reloads_total"
	MetricTrainingMSE      = "carprice_training_mse"
	MetricTrainingR2       = "carprice_training_r2"
	MetricTrainingSeconds  = "carprice_training_duration_seconds"
	MetricSkippedRows      = "carprice_training_skipped_rows"
)

// Metric 指标
type Metric struct {
	Name      string     `json:"name"`
	Type      MetricType `json:"type"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
	Help      string     `json:"help,omitempty"`
}

// MetricsCollector 指标收集器, keeps the latest value of every metric.
type MetricsCollector struct {
	metrics     map[string]*Metric
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:   make(map[string]*Metric),
		startTime: time.Now(),
	}
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, value float64) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	metric, ok := mc.metrics[name]
	if !ok {
		metric = &Metric{Name: name, Type: MetricTypeCounter}
		mc.metrics[name] = metric
	}
	metric.Value += value
	metric.Timestamp = time.Now()
}

// SetGauge 设置仪表
func (mc *MetricsCollector) SetGauge(name string, value float64) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	mc.metrics[name] = &Metric{
		Name:      name,
		Type:      MetricTypeGauge,
		Value:     value,
		Timestamp: time.Now(),
	}
}

// GetMetric 获取指标
func (mc *MetricsCollector) GetMetric(name string) (Metric, error) {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	metric, ok := mc.metrics[name]
	if !ok {
		return Metric{}, fmt.Errorf("metric %s not found", name)
	}
	return *metric, nil
}

// Snapshot 返回所有指标的副本, sorted by name
func (mc *MetricsCollector) Snapshot() []Metric {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	result := make([]Metric, 0, len(mc.metrics))
	for _, m := range mc.metrics {
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// ExportPrometheus 导出Prometheus文本格式
func (mc *MetricsCollector) ExportPrometheus() string {
	var b strings.Builder
	for _, metric := range mc.Snapshot() {
		help := metric.Help
		if help == "" {
			help = fmt.Sprintf("Metric %s", metric.Name)
		}
		fmt.Fprintf(&b, "# HELP %s %s\n", metric.Name, help)
		fmt.Fprintf(&b, "# TYPE %s %s\n", metric.Name, metric.Type)
		fmt.Fprintf(&b, "%s %g\n", metric.Name, metric.Value)
	}
	return b.String()
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats 获取系统统计
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime_seconds": mc.GetUptime().Seconds(),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc":     m.HeapAlloc,
		"gc_count":       m.NumGC,
	}
}
