package tc

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/lqos-tc/bakery/internal/clock"
	"github.com/lqos-tc/bakery/internal/config"
	"github.com/lqos-tc/bakery/internal/events"
	"github.com/lqos-tc/bakery/internal/logging"
	"github.com/lqos-tc/bakery/internal/metrics"
)

// BatchState is the Engine's batch-control state machine.
type BatchState int

const (
	// Idle: no batch in progress; Enqueue applies each command immediately.
	Idle BatchState = iota
	// Batching: between StartBatch and CommitBatch; commands accumulate.
	Batching
)

// Engine owns the intended topology and diffs it against the last
// committed kernel state, producing the minimal ordered sequence of `tc`
// argv vectors needed to transition from one to the other.
type Engine struct {
	store  *config.Store
	logger *slog.Logger
	hub    *events.Hub

	// mu guards the topologies and batch state. The executor is the only
	// mutator in steady operation, but the metrics collector reads counts
	// from its own goroutine.
	mu        sync.RWMutex
	state     BatchState
	committed *Topology
	pending   *Topology
}

// SetHub attaches an event hub that CommitBatch publishes to. Optional; a
// nil hub (the default) simply skips publication.
func (e *Engine) SetHub(hub *events.Hub) {
	e.hub = hub
}

// NewEngine creates a batch engine starting from an empty committed
// topology. Configuration is read through the store so every operation
// works against one consistent snapshot even across live reloads.
func NewEngine(store *config.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		logger:    logger,
		state:     Idle,
		committed: NewTopology(),
	}
}

// StartBatch transitions the engine to Batching. Calling it while already
// batching fails with ErrInvalidState and leaves the engine unchanged.
func (e *Engine) StartBatch() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Batching {
		return fmt.Errorf("%w: StartBatch called while already batching", ErrInvalidState)
	}
	e.state = Batching
	e.pending = e.committed.Clone()
	return nil
}

// AbortBatch discards the pending batch and returns the engine to Idle. A
// caller that hits a validation error mid-batch needs a way back without
// committing a partial topology.
func (e *Engine) AbortBatch() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Batching {
		return fmt.Errorf("%w: AbortBatch called while not batching", ErrInvalidState)
	}
	e.state = Idle
	e.pending = nil
	return nil
}

// EnqueueSite adds or replaces a site in the pending (or, outside a batch,
// immediate) topology.
func (e *Engine) EnqueueSite(n SiteNode) ([]ArgVec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Batching {
		return nil, e.pending.AddSite(n)
	}
	scratch := e.committed.Clone()
	if err := scratch.AddSite(n); err != nil {
		return nil, err
	}
	out := e.diff(e.store.Get(), e.committed, scratch)
	e.committed = scratch
	return out, nil
}

// EnqueueCircuit adds or replaces a circuit in the pending (or immediate)
// topology.
func (e *Engine) EnqueueCircuit(n CircuitNode) ([]ArgVec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Batching {
		return nil, e.pending.AddCircuit(n)
	}
	scratch := e.committed.Clone()
	if err := scratch.AddCircuit(n); err != nil {
		return nil, err
	}
	out := e.diff(e.store.Get(), e.committed, scratch)
	e.committed = scratch
	return out, nil
}

// CommitBatch diffs the pending topology against the previously committed
// one, emitting in dependency-safe order: circuit prunes, site prunes
// (children first), site adds/changes (parents first), circuit adds,
// grouped by parent site, after their parent's add. It then swaps
// committed ← pending and returns the engine to Idle.
func (e *Engine) CommitBatch() ([]ArgVec, error) {
	e.mu.Lock()
	if e.state != Batching {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: CommitBatch called without a prior StartBatch", ErrInvalidState)
	}
	batchID := uuid.New().String()
	start := clock.Now()
	out := e.diff(e.store.Get(), e.committed, e.pending)
	e.committed = e.pending
	e.pending = nil
	e.state = Idle
	sites, circuits := len(e.committed.Sites), len(e.committed.Circuits)
	e.mu.Unlock()

	duration := clock.Since(start)
	e.logger.Info("batch committed", "batch_id", batchID, "commands", len(out),
		"sites", sites, "circuits", circuits)
	logging.BatchLog("info", "batch %s committed: %d commands, %d sites, %d circuits",
		batchID, len(out), sites, circuits)
	metrics.Get().RecordBatchCommit(len(out), duration.Seconds())
	metrics.Get().RecordCommandsEmitted("batch", len(out))
	if e.hub != nil {
		e.hub.Publish(events.Event{
			Type:   events.EventBatchCommitted,
			Source: "batch_engine",
			Data:   events.BatchCommittedData{CommandCount: len(out), Duration: duration},
		})
	}
	return out, nil
}

// diff computes the ordered argv sequence transitioning `from` to `to`,
// encoding every command against the one config snapshot it is handed.
func (e *Engine) diff(cfg *config.Config, from, to *Topology) []ArgVec {
	var out []ArgVec

	// 1. Prune removed circuits.
	for _, hash := range sortedInt64Keys(from.Circuits) {
		if _, stillThere := to.Circuits[hash]; stillThere {
			continue
		}
		cmd := from.Circuits[hash].AddCircuitCommand()
		if argv, ok := ToPrune(cmd, cfg, true, e.logger); ok {
			out = append(out, argv...)
		}
	}

	// 2. Prune removed sites, deepest first (children before parents).
	removedSites := sortedInt64Keys(from.Sites)
	sort.SliceStable(removedSites, func(i, j int) bool {
		return from.SiteDepth(removedSites[i]) > from.SiteDepth(removedSites[j])
	})
	for _, hash := range removedSites {
		if _, stillThere := to.Sites[hash]; stillThere {
			continue
		}
		out = append(out, siteDeleteArgs(cfg, from.Sites[hash])...)
	}

	// 3. Add/replace/change sites, shallowest (parents) first.
	newOrChangedSites := sortedInt64Keys(to.Sites)
	sort.SliceStable(newOrChangedSites, func(i, j int) bool {
		return to.SiteDepth(newOrChangedSites[i]) < to.SiteDepth(newOrChangedSites[j])
	})
	for _, hash := range newOrChangedSites {
		node := to.Sites[hash]
		prior, existed := from.Sites[hash]
		if existed && sitesEqual(prior, node) {
			continue
		}
		var cmd Command
		if existed {
			cmd = node.ChangeSiteSpeedCommand()
		} else {
			cmd = node.AddSiteCommand()
		}
		if argv, ok := ToCommands(cmd, cfg, Builder, e.logger); ok {
			out = append(out, argv...)
		}
	}

	// 4 & 5. Add/replace circuits, grouped by parent site (after the
	// parent's own add, satisfied because sites were already emitted above).
	newOrChangedCircuits := sortedInt64Keys(to.Circuits)
	sort.SliceStable(newOrChangedCircuits, func(i, j int) bool {
		a, b := to.Circuits[newOrChangedCircuits[i]], to.Circuits[newOrChangedCircuits[j]]
		if a.SiteHash != b.SiteHash {
			da, db := to.SiteDepth(a.SiteHash), to.SiteDepth(b.SiteHash)
			if da != db {
				return da < db
			}
			return a.SiteHash < b.SiteHash
		}
		return a.CircuitHash < b.CircuitHash
	})
	for _, hash := range newOrChangedCircuits {
		node := to.Circuits[hash]
		if prior, existed := from.Circuits[hash]; existed && circuitsEqual(prior, node) {
			continue
		}
		cmd := node.AddCircuitCommand()
		if argv, ok := ToCommands(cmd, cfg, Builder, e.logger); ok {
			out = append(out, argv...)
		}
	}

	return out
}

// SiteCount reports the number of sites in the committed topology, for
// metrics collection.
func (e *Engine) SiteCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.committed.Sites)
}

// CircuitCountsByState reports the committed circuit count per
// materialization state, for metrics collection.
func (e *Engine) CircuitCountsByState() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	counts := map[string]int{
		Virtual.String(): 0,
		HtbOnly.String(): 0,
		Full.String():    0,
	}
	for _, c := range e.committed.Circuits {
		counts[c.State.String()]++
	}
	return counts
}

func siteDeleteArgs(cfg *config.Config, n *SiteNode) []ArgVec {
	return []ArgVec{
		{
			"class", "del", "dev", cfg.ISPInterface(),
			"parent", n.ParentDown.String(),
			"classid", Handle{Minor: n.Minor}.ClassID(),
		},
		{
			"class", "del", "dev", cfg.InternetInterface(),
			"parent", n.ParentUp.String(),
			"classid", Handle{Minor: n.Minor}.ClassID(),
		},
	}
}

func sitesEqual(a, b *SiteNode) bool {
	return a.ParentDown == b.ParentDown && a.ParentUp == b.ParentUp && a.Minor == b.Minor &&
		a.DownMin == b.DownMin && a.DownMax == b.DownMax && a.UpMin == b.UpMin && a.UpMax == b.UpMax
}

func circuitsEqual(a, b *CircuitNode) bool {
	return a.ParentDown == b.ParentDown && a.ParentUp == b.ParentUp && a.Minor == b.Minor &&
		a.ClassMajor == b.ClassMajor && a.UpClassMajor == b.UpClassMajor &&
		a.DownMin == b.DownMin && a.DownMax == b.DownMax && a.UpMin == b.UpMin && a.UpMax == b.UpMax &&
		a.IPList == b.IPList
}

func sortedInt64Keys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
