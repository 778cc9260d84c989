package sls

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Statistics are the engine counters.
type Statistics struct {
	Steps          uint64
	Restarts       uint64
	Propagations   uint64
	Repairs        uint64
	RepairFailures uint64
	Overflows      uint64
	RangeDoublings uint64
}

// Add returns the field-wise sum of s and o.
func (s Statistics) Add(o Statistics) Statistics {
	return Statistics{
		Steps:          s.Steps + o.Steps,
		Restarts:       s.Restarts + o.Restarts,
		Propagations:   s.Propagations + o.Propagations,
		Repairs:        s.Repairs + o.Repairs,
		RepairFailures: s.RepairFailures + o.RepairFailures,
		Overflows:      s.Overflows + o.Overflows,
		RangeDoublings: s.RangeDoublings + o.RangeDoublings,
	}
}

// StatsSource provides counter snapshots. Implementations must be safe to
// call from the goroutine that serves metrics.
type StatsSource interface {
	CollectStatistics() Statistics
}

// StatsSnapshot is a StatsSource that publishes values stored by the
// goroutine driving an engine.
type StatsSnapshot struct {
	mu sync.Mutex
	s  Statistics
}

// Store replaces the published counters.
func (p *StatsSnapshot) Store(s Statistics) {
	p.mu.Lock()
	p.s = s
	p.mu.Unlock()
}

// CollectStatistics returns the last stored counters.
func (p *StatsSnapshot) CollectStatistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s
}

// Collector exports Statistics as Prometheus counters.
type Collector struct {
	src   StatsSource
	descs []*prometheus.Desc
}

var statNames = []struct{ name, help string }{
	{"steps_total", "Local search steps."},
	{"restarts_total", "Search restarts."},
	{"propagations_total", "Literal changes reported by the host."},
	{"repairs_total", "Downward repairs of defined terms."},
	{"repair_failures_total", "Downward repairs that did not restore the definition."},
	{"overflows_total", "Operations abandoned on integer overflow."},
	{"range_doublings_total", "Search range doublings."},
}

// NewCollector returns a collector reading from src.
func NewCollector(src StatsSource, namespace string) *Collector {
	c := &Collector{src: src}
	for _, s := range statNames {
		c.descs = append(c.descs, prometheus.NewDesc(prometheus.BuildFQName(namespace, "sls", s.name), s.help, nil, nil))
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.CollectStatistics()
	vals := []uint64{s.Steps, s.Restarts, s.Propagations, s.Repairs, s.RepairFailures, s.Overflows, s.RangeDoublings}
	for i, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(vals[i]))
	}
}
