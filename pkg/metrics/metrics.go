// Package metrics wires poller progress into Prometheus, grounded on
// seedfourtytwo-solana-exporter's pkg/rpc call-counter and collector
// registration pattern.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the poller's Prometheus series. A nil *Collector is
// legal everywhere it is accepted: every recording method is a no-op on
// a nil receiver, the same guard seedfourtytwo-solana-exporter uses for
// optional collectors so tests and simple embedders don't pay for
// Prometheus.
type Collector struct {
	ticks         *prometheus.CounterVec
	tickErrors    *prometheus.CounterVec
	reorgs        *prometheus.CounterVec
	orphanedSlots *prometheus.CounterVec
	lastProcessed *prometheus.GaugeVec
	slotFetch     *prometheus.HistogramVec
}

// NewCollector builds and registers a Collector against reg. Pass
// prometheus.DefaultRegisterer for the global registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solana_poller_ticks_total",
			Help: "Total number of forward-progress ticks completed, per chain.",
		}, []string{"chain_id"}),
		tickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solana_poller_tick_errors_total",
			Help: "Total number of ticks that ended in a recoverable error, per chain.",
		}, []string{"chain_id"}),
		reorgs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solana_poller_reorgs_total",
			Help: "Total number of reorg episodes reconciled, per chain.",
		}, []string{"chain_id"}),
		orphanedSlots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solana_poller_orphaned_slots_total",
			Help: "Total number of slot records marked orphaned, per chain.",
		}, []string{"chain_id"}),
		lastProcessed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solana_poller_last_processed_slot",
			Help: "Highest slot number persisted as processed, per chain.",
		}, []string{"chain_id"}),
		slotFetch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "solana_poller_slot_fetch_duration_seconds",
			Help: "Duration of GetSlotByNumber calls, per chain.",
		}, []string{"chain_id"}),
	}

	if reg != nil {
		reg.MustRegister(c.ticks, c.tickErrors, c.reorgs, c.orphanedSlots, c.lastProcessed, c.slotFetch)
	}

	return c
}

func (c *Collector) IncTick(chainID string) {
	if c == nil {
		return
	}
	c.ticks.WithLabelValues(chainID).Inc()
}

func (c *Collector) IncTickError(chainID string) {
	if c == nil {
		return
	}
	c.tickErrors.WithLabelValues(chainID).Inc()
}

func (c *Collector) IncReorg(chainID string) {
	if c == nil {
		return
	}
	c.reorgs.WithLabelValues(chainID).Inc()
}

func (c *Collector) AddOrphanedSlots(chainID string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.orphanedSlots.WithLabelValues(chainID).Add(float64(n))
}

func (c *Collector) SetLastProcessedSlot(chainID string, slot uint64) {
	if c == nil {
		return
	}
	c.lastProcessed.WithLabelValues(chainID).Set(float64(slot))
}

func (c *Collector) ObserveSlotFetch(chainID string, d time.Duration) {
	if c == nil {
		return
	}
	c.slotFetch.WithLabelValues(chainID).Observe(d.Seconds())
}
