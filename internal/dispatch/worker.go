// Package dispatch implements the hub's main loop: on every pass it walks
// the session registry, runs the protocol engine for each session, and
// adaptively sleeps to trade CPU for latency. It is the single-goroutine
// owner of the identifier allocator and outgoing queues, per the
// ownership rules the rest of the hub is built around.
package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/ptrow/rawhidhub/internal/clock"
	"github.com/ptrow/rawhidhub/internal/constants"
	"github.com/ptrow/rawhidhub/internal/interfaces"
	"github.com/ptrow/rawhidhub/internal/protocol"
	"github.com/ptrow/rawhidhub/internal/registry"
)

// Stats is what Config.StatsSink receives once per STATS_INTERVAL_MS.
// The worker fills only IterationsSinceReset (reset after each print) and
// leaves Forwarded nil; per-pair forward counts are kept by the root
// package's Metrics.
type Stats struct {
	IterationsSinceReset uint64
	Forwarded            map[[2]int32]uint64 // (origin, destination) -> count
}

// StatsSink receives a Stats snapshot once per STATS_INTERVAL_MS. The
// root package's metrics collector is the production implementation;
// tests can supply a stub.
type StatsSink interface {
	Observe(Stats)
}

// Config wires a Worker to its collaborators.
type Config struct {
	Registry  *registry.Registry
	Engine    *protocol.Engine
	Clock     clock.Clock
	Logger    interfaces.Logger
	StatsSink StatsSink
}

// Worker runs the dispatch main loop described above. It must be driven
// by exactly one goroutine; the ownership comment on package dispatch
// explains why.
type Worker struct {
	cfg Config

	lastMessageTimeMs atomic.Uint64
	lastStatsPrintMs  uint64
	iterations        uint64

	terminated atomic.Bool
}

// New returns a Worker ready to Run.
func New(cfg Config) *Worker {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Worker{cfg: cfg}
}

// Run executes the main loop until ctx is cancelled. It performs one
// final pass after cancellation before returning, advancing the
// registry's generation counter once more for any free handshake
// (registry.Registry.UnlinkAndFree) in progress. A handshake that still
// needs a further advance after that is released by
// registry.Registry.ForceUnblock, not by this worker.
func (w *Worker) Run(ctx context.Context) {
	for {
		w.pass()

		select {
		case <-ctx.Done():
			w.pass()
			w.terminated.Store(true)
			return
		default:
		}

		w.sleep()
	}
}

func (w *Worker) pass() {
	now := w.cfg.Clock.NowMs()

	w.cfg.Registry.BeginPass()

	w.cfg.Registry.Iterate(func(s *registry.Session) {
		if s.UnregisterRequested() {
			w.cfg.Engine.Allocator.Unregister(s)
			s.AckDispatch()
			return
		}
		before := w.cfg.Engine.LastMessageTimeMs
		w.cfg.Engine.ProcessInbound(s, now)
		if w.cfg.Engine.LastMessageTimeMs != before {
			w.lastMessageTimeMs.Store(now)
		}
	})

	w.cfg.Engine.BroadcastIfChanged()

	w.cfg.Registry.Iterate(func(s *registry.Session) {
		if s.DeviceID() == constants.Unassigned {
			return
		}
		w.cfg.Engine.DrainOutgoing(s)
	})

	w.maybePrintStats(now)
}

func (w *Worker) sleep() {
	now := w.cfg.Clock.NowMs()
	last := w.lastMessageTimeMs.Load()
	if now-last > uint64(constants.IdleGrace.Milliseconds()) {
		w.cfg.Clock.Sleep(constants.SlowSleep)
		return
	}
	w.cfg.Clock.Sleep(constants.FastSleep)
}

func (w *Worker) maybePrintStats(now uint64) {
	w.iterations++
	if now-w.lastStatsPrintMs < uint64(constants.StatsInterval.Milliseconds()) {
		return
	}
	w.lastStatsPrintMs = now

	if w.cfg.StatsSink != nil {
		w.cfg.StatsSink.Observe(Stats{IterationsSinceReset: w.iterations})
	}
	w.iterations = 0
}

// Terminated reports whether Run has completed its final pass.
func (w *Worker) Terminated() bool { return w.terminated.Load() }
