// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vizlab_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vizlab_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"endpoint", "method"},
	)

	// SignalsServed количество отданных сигналов
	SignalsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vizlab_signals_served_total",
			Help: "Total number of signals loaded and served",
		},
	)

	// SignalLoadErrors ошибки загрузки сигналов по классу
	SignalLoadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vizlab_signal_load_errors_total",
			Help: "Signal load failures by error class",
		},
		[]string{"class"},
	)

	// RatioCacheHits попадания в кэш отношений
	RatioCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vizlab_ratio_cache_hits_total",
			Help: "Total number of ratio cache hits",
		},
	)

	// RatioCacheMisses промахи кэша отношений
	RatioCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vizlab_ratio_cache_misses_total",
			Help: "Total number of ratio cache misses",
		},
	)

	// RatioLatency время вычисления отношения
	RatioLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vizlab_ratio_compute_seconds",
			Help:    "Ratio computation latency in seconds, source fetch included",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
	)

	// RegistryDevices количество устройств в текущем снимке реестра
	RegistryDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vizlab_registry_devices",
			Help: "Number of devices in the current registry snapshot",
		},
	)

	// RegistrySkipped количество устройств, пропущенных при последней сборке
	RegistrySkipped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vizlab_registry_skipped_devices",
			Help: "Number of devices skipped by the last registry build",
		},
	)

	// RegistryReloads перестроения реестра по результату
	RegistryReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vizlab_registry_reloads_total",
			Help: "Registry rebuilds by result",
		},
		[]string{"result"},
	)

	// ActiveSessions количество активных сессий
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vizlab_active_sessions",
			Help: "Number of live ratio sessions",
		},
	)
)

// Результаты перестроения реестра
const (
	ReloadOK          = "ok"
	ReloadFailed      = "failed"
	ReloadRateLimited = "rate_limited"
)

// UpdateRegistryMetrics обновляет метрики реестра после сборки
func UpdateRegistryMetrics(devices, skipped int) {
	RegistryDevices.Set(float64(devices))
	RegistrySkipped.Set(float64(skipped))
}
