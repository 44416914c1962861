package jobs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "verity"
	metricsSubsystem = "reconciler"
)

type sweepMetrics struct {
	sweepsTotal   prometheus.Counter
	linksChecked  prometheus.Gauge
	linksOrphaned prometheus.Gauge
	lastSweepTime prometheus.Gauge
}

var (
	defaultSweepMetricsOnce sync.Once
	defaultSweepMetricsInst *sweepMetrics
)

func getDefaultSweepMetrics() *sweepMetrics {
	defaultSweepMetricsOnce.Do(func() {
		defaultSweepMetricsInst = newSweepMetrics(prometheus.DefaultRegisterer)
	})
	return defaultSweepMetricsInst
}

func newSweepMetrics(reg prometheus.Registerer) *sweepMetrics {
	m := &sweepMetrics{
		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "sweeps_total",
			Help:      "Total number of completed knowledge-link sweeps.",
		}),
		linksChecked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "links_checked",
			Help:      "Links checked in the most recent sweep.",
		}),
		linksOrphaned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "links_orphaned",
			Help:      "Links found orphaned in the most recent sweep.",
		}),
		lastSweepTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time of the most recent completed sweep.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sweepsTotal, m.linksChecked, m.linksOrphaned, m.lastSweepTime)
	}
	return m
}

func (m *sweepMetrics) record(checked, orphaned int) {
	if m == nil {
		return
	}
	m.sweepsTotal.Inc()
	m.linksChecked.Set(float64(checked))
	m.linksOrphaned.Set(float64(orphaned))
	m.lastSweepTime.Set(float64(time.Now().Unix()))
}
