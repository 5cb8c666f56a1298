package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hostpanel"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	rollbacks       *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	orphanedBackups prometheus.Gauge
	danglingLinks   prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_operations_total",
			Help:      "Proxy lifecycle operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_rollbacks_total",
			Help:      "Rollbacks performed after a failed proxy change.",
		}, []string{"result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_command_duration_seconds",
			Help:      "Wall time of nginx test and reload invocations.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"command"}),
		orphanedBackups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orphaned_backups",
			Help:      "Backup files left in sites-available at the last sweep.",
		}),
		danglingLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dangling_links",
			Help:      "Enabled entries pointing at missing configs at the last sweep.",
		}),
	}

	reg.MustRegister(m.operations, m.rollbacks, m.commandDuration, m.orphanedBackups, m.danglingLinks)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the exposition format for this registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveRollback(result string) {
	m.rollbacks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCommand(command string, d time.Duration) {
	m.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

func (m *Metrics) SetSweepFindings(orphans, dangling int) {
	m.orphanedBackups.Set(float64(orphans))
	m.danglingLinks.Set(float64(dangling))
}
