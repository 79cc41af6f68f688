package tc

import (
	"context"
	"log/slog"
	"time"

	"github.com/lqos-tc/bakery/internal/clock"
	"github.com/lqos-tc/bakery/internal/config"
	"github.com/lqos-tc/bakery/internal/events"
	"github.com/lqos-tc/bakery/internal/logging"
	"github.com/lqos-tc/bakery/internal/metrics"
)

// IdleTimeout is the duration of inactivity after which a lazily-materialized
// circuit is eligible for pruning back toward its configured lazy state.
const IdleTimeout = 5 * time.Minute

// ActivityEvent is enqueued by traffic observers to report that a circuit
// saw packets, prompting the executor to materialize it if it is not
// already at Full.
type ActivityEvent struct {
	CircuitHash int64
}

// SpeedChangeEvent requests an immediate, out-of-batch rate change on a
// site that already exists in the kernel.
type SpeedChangeEvent struct {
	Site SiteNode
}

// StormGuardEvent requests an immediate ceiling reduction on a single class,
// bypassing the topology entirely. DryRun true means the executor logs the
// argv it would have run instead of invoking the runner.
type StormGuardEvent struct {
	Command Command
}

// Executor is the single consumer of the Bakery's activity channel: the
// producers feeding its channels never call the command runner themselves,
// so their writes reach the kernel one at a time. cmd/bakeryd's one-time
// MQ setup is the exception; it calls the runner directly at startup.
type Executor struct {
	store    *config.Store
	logger   *slog.Logger
	clock    clock.Clock
	runner   CommandRunner
	engine   *Engine
	hub      *events.Hub
	lastSeen map[int64]time.Time

	activity   chan ActivityEvent
	speed      chan SpeedChangeEvent
	stormGuard chan StormGuardEvent
	ticks      chan struct{}
}

// NewExecutor wires an Executor around an Engine, a CommandRunner, and a
// clock. Channels are unbuffered by design: a slow runner applies backpressure
// to producers instead of letting the queue grow unbounded. Each handler
// reads one config snapshot from the store for its whole run, so a live
// reload never tears an in-flight operation.
func NewExecutor(store *config.Store, logger *slog.Logger, clk clock.Clock, runner CommandRunner, engine *Engine, hub *events.Hub) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = DefaultCommandRunner
	}
	return &Executor{
		store:      store,
		logger:     logger,
		clock:      clk,
		runner:     runner,
		engine:     engine,
		hub:        hub,
		lastSeen:   make(map[int64]time.Time),
		activity:   make(chan ActivityEvent),
		speed:      make(chan SpeedChangeEvent),
		stormGuard: make(chan StormGuardEvent),
		ticks:      make(chan struct{}),
	}
}

// NotifyActivity reports a circuit saw traffic. It blocks until the
// executor's loop accepts it or ctx is cancelled.
func (e *Executor) NotifyActivity(ctx context.Context, circuitHash int64) error {
	select {
	case e.activity <- ActivityEvent{CircuitHash: circuitHash}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifySpeedChange requests an immediate site rate change.
func (e *Executor) NotifySpeedChange(ctx context.Context, site SiteNode) error {
	select {
	case e.speed <- SpeedChangeEvent{Site: site}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyStormGuard requests an immediate ceiling reduction, bypassing the
// topology. A dry-run command is logged but never dispatched to the runner.
func (e *Executor) NotifyStormGuard(ctx context.Context, cmd Command) error {
	select {
	case e.stormGuard <- StormGuardEvent{Command: cmd}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick drives periodic idle-circuit pruning; intended to be called from a
// scheduler task, not directly by producers of activity events.
func (e *Executor) Tick(ctx context.Context) error {
	select {
	case e.ticks <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the Activity Loop: it consumes activity, speed-change, and tick
// events from its channels until ctx is cancelled, dispatching each via the
// command runner. A dispatch failure is logged and published on the hub; it
// never aborts the loop or corrupts engine state, since the diff against
// the last committed topology self-heals on the next event.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.activity:
			e.onCircuitActivity(ev.CircuitHash)
		case ev := <-e.speed:
			e.onSpeedChange(ev.Site)
		case ev := <-e.stormGuard:
			e.onStormGuard(ev.Command)
		case <-e.ticks:
			e.onTick()
		}
	}
}

func (e *Executor) onCircuitActivity(circuitHash int64) {
	e.engine.mu.RLock()
	node, ok := e.engine.committed.Circuits[circuitHash]
	e.engine.mu.RUnlock()
	if !ok {
		e.logger.Warn("activity for unknown circuit", "circuit_hash", circuitHash)
		return
	}
	e.lastSeen[circuitHash] = e.clock.Now()
	if node.State == Full {
		return
	}

	cmd := node.AddCircuitCommand()
	argv, ok := ToCommands(cmd, e.store.Get(), LiveUpdate, e.logger)
	if !ok {
		return
	}
	if err := e.dispatch(argv); err != nil {
		e.logger.Error("failed to materialize circuit on activity", "circuit_hash", circuitHash, "error", err)
		return
	}
	e.engine.mu.Lock()
	node.State = Full
	e.engine.mu.Unlock()
	metrics.Get().ActivityMaterializations.Inc()
	if e.hub != nil {
		e.hub.EmitCircuitMaterialized(circuitHash, node.SiteHash, node.State.String())
	}
}

func (e *Executor) onSpeedChange(site SiteNode) {
	e.engine.mu.Lock()
	err := e.engine.committed.AddSite(site)
	e.engine.mu.Unlock()
	if err != nil {
		e.logger.Error("invalid site speed change", "site_hash", site.SiteHash, "error", err)
		return
	}
	cmd := site.ChangeSiteSpeedCommand()
	argv, ok := ToCommands(cmd, e.store.Get(), LiveUpdate, e.logger)
	if !ok {
		return
	}
	if err := e.dispatch(argv); err != nil {
		e.logger.Error("failed to apply live site speed change", "site_hash", site.SiteHash, "error", err)
		return
	}
	if e.hub != nil {
		e.hub.EmitSiteSpeedChanged(site.SiteHash, site.DownMax, site.UpMax)
	}
}

// onStormGuard applies a storm-guard ceiling reduction. The encoder always
// produces the argv regardless of DryRun; the split between logging and
// invoking happens here, at dispatch time, never in the encoder.
func (e *Executor) onStormGuard(cmd Command) {
	argv, ok := ToCommands(cmd, e.store.Get(), LiveUpdate, e.logger)
	if !ok {
		return
	}
	if cmd.DryRun {
		for _, a := range argv {
			e.logger.Info("storm-guard dry-run", "argv", a)
		}
		return
	}
	if err := e.dispatch(argv); err != nil {
		e.logger.Error("storm-guard dispatch failed", "class_id", cmd.ClassID, "error", err)
	}
}

func (e *Executor) onTick() {
	cfg := e.store.Get()
	lazy := cfg.Queues.LazyQueues
	if lazy == "" || lazy == config.LazyNo {
		return
	}
	// A non-force prune under LazyHtb removes only the SQM leaf; the HTB
	// class stays live in the kernel, so the circuit lands at HtbOnly.
	// Only LazyFull tears the circuit all the way back to Virtual.
	postPrune := HtbOnly
	if lazy == config.LazyFull {
		postPrune = Virtual
	}

	now := e.clock.Now()
	type candidate struct {
		hash int64
		node *CircuitNode
	}
	var idle []candidate
	e.engine.mu.RLock()
	for hash, node := range e.engine.committed.Circuits {
		if node.State == Virtual || node.State == postPrune {
			continue
		}
		seen, ok := e.lastSeen[hash]
		if !ok || now.Sub(seen) < IdleTimeout {
			continue
		}
		idle = append(idle, candidate{hash, node})
	}
	e.engine.mu.RUnlock()

	for _, c := range idle {
		hash, node := c.hash, c.node
		cmd := node.AddCircuitCommand()
		argv, ok := ToPrune(cmd, cfg, false, e.logger)
		if !ok {
			continue
		}
		if err := e.dispatch(argv); err != nil {
			e.logger.Error("failed to prune idle circuit", "circuit_hash", hash, "error", err)
			continue
		}
		e.engine.mu.Lock()
		node.State = postPrune
		e.engine.mu.Unlock()
		delete(e.lastSeen, hash)
		metrics.Get().IdlePrunes.Inc()
		if e.hub != nil {
			e.hub.EmitCircuitPruned(hash, node.SiteHash, postPrune.String())
		}
	}
}

func (e *Executor) dispatch(argv []ArgVec) error {
	for _, a := range argv {
		if err := e.runner.Run(a); err != nil {
			metrics.Get().RecordDispatchError(a[0])
			logging.TCLog("error", "dispatch failed: %v: %v", a, err)
			if e.hub != nil {
				e.hub.EmitDispatchFailed(a, err)
			}
			return err
		}
	}
	return nil
}
