// Package promstats exports Manager task counters and lifecycle state as
// Prometheus metrics.
//
//	c := promstats.NewCollector()
//	prometheus.MustRegister(c)
//	c.Add(m)
//	http.Handle("/metrics", promhttp.Handler())
//
// Values are read from each Manager at scrape time, so they are always
// consistent with Manager.Stats.
package promstats

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/axondata/go-asyncsvc"
)

// Namespace prefixes every exported metric
const Namespace = "asyncsvc"

// Source is the read-only view of a Manager the collector scrapes.
// *asyncsvc.Manager satisfies it.
type Source interface {
	Name() string
	Stats() asyncsvc.Stats
	State() asyncsvc.State
	Err() error
}

var _ Source = (*asyncsvc.Manager)(nil)

// states lists every State exported by the state gauge
var states = []asyncsvc.State{
	asyncsvc.StateNotStarted,
	asyncsvc.StateStarted,
	asyncsvc.StateRunning,
	asyncsvc.StateCancelling,
	asyncsvc.StateCancelled,
	asyncsvc.StateFinished,
}

// Collector is a prometheus.Collector over a changing set of Managers
type Collector struct {
	total    *prometheus.Desc
	finished *prometheus.Desc
	pending  *prometheus.Desc
	state    *prometheus.Desc
	failed   *prometheus.Desc

	mu      sync.RWMutex
	sources map[string]Source
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates an empty Collector
func NewCollector() *Collector {
	labels := []string{"manager"}
	return &Collector{
		total: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "tasks", "registered_total"),
			"Tasks ever registered with the manager",
			labels, nil,
		),
		finished: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "tasks", "finished_total"),
			"Registered tasks that have finished",
			labels, nil,
		),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "tasks", "pending"),
			"Registered tasks that have not finished",
			labels, nil,
		),
		state: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "manager", "state"),
			"Lifecycle state of the manager; 1 for the current state",
			[]string{"manager", "state"}, nil,
		),
		failed: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "manager", "failed"),
			"1 if the manager recorded an error",
			labels, nil,
		),
		sources: make(map[string]Source),
	}
}

// Add starts exporting src under its name, replacing any source with the
// same name
func (c *Collector) Add(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[src.Name()] = src
}

// Remove stops exporting the source with the given name
func (c *Collector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, name)
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.finished
	ch <- c.pending
	ch <- c.state
	ch <- c.failed
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	srcs := make([]Source, 0, len(names))
	for _, name := range names {
		srcs = append(srcs, c.sources[name])
	}
	c.mu.RUnlock()

	for i, src := range srcs {
		name := names[i]
		stats := src.Stats()
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(stats.TotalCount), name)
		ch <- prometheus.MustNewConstMetric(c.finished, prometheus.CounterValue, float64(stats.FinishedCount), name)
		ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(stats.PendingCount), name)

		current := src.State()
		for _, st := range states {
			ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, boolValue(st == current), name, st.String())
		}
		ch <- prometheus.MustNewConstMetric(c.failed, prometheus.GaugeValue, boolValue(src.Err() != nil), name)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
