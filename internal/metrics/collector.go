package metrics

import (
	"sync"
	"time"

	"github.com/lqos-tc/bakery/internal/clock"
	"github.com/lqos-tc/bakery/internal/logging"
)

// TopologySource is the minimal view of the engine's committed topology the
// collector needs; satisfied by tc.Engine.
type TopologySource interface {
	SiteCount() int
	CircuitCountsByState() map[string]int
}

// Collector periodically snapshots the committed topology into the
// Prometheus registry.
type Collector struct {
	registry *Registry
	logger   *logging.Logger
	source   TopologySource
	interval time.Duration
	stopCh   chan struct{}

	mu         sync.RWMutex
	lastUpdate time.Time
	lastCounts map[string]int
}

// NewCollector creates a new metrics collector over the given topology
// source.
func NewCollector(logger *logging.Logger, source TopologySource, interval time.Duration) *Collector {
	return &Collector{
		registry:   Get(),
		logger:     logger,
		source:     source,
		interval:   interval,
		stopCh:     make(chan struct{}),
		lastCounts: make(map[string]int),
	}
}

// Start begins the metrics collection loop.
func (c *Collector) Start() {
	c.logger.Info("starting metrics collector", "interval", c.interval.String())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopCh:
			c.logger.Info("stopping metrics collector")
			return
		}
	}
}

// Stop stops the metrics collection loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect runs a single collection pass immediately, independent of Start's
// ticker; exposed for callers that want to snapshot on demand (e.g. a
// scheduler task).
func (c *Collector) Collect() {
	c.collect()
}

func (c *Collector) collect() {
	if c.source == nil {
		return
	}
	counts := c.source.CircuitCountsByState()
	total := 0
	for _, n := range counts {
		total += n
	}

	c.registry.UpdateTopologyGauges(c.source.SiteCount(), total, counts)

	c.mu.Lock()
	c.lastUpdate = clock.Now()
	c.lastCounts = counts
	c.mu.Unlock()
}

// GetLastUpdate returns the timestamp of the last collection pass.
func (c *Collector) GetLastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// GetCircuitCountsByState returns a copy of the last observed per-state
// circuit counts.
func (c *Collector) GetCircuitCountsByState() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int, len(c.lastCounts))
	for k, v := range c.lastCounts {
		result[k] = v
	}
	return result
}
