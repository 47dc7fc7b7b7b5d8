// Package rawhidhub is the message hub described in spec.md: it
// discovers raw-HID endpoints, assigns each a small integer identifier,
// and forwards fixed-size reports between registered peers. Serve and
// StopAndWait are the lifecycle entry points, directly modeled on the
// teacher's CreateAndServe/StopAndDelete (backend.go).
package rawhidhub

import (
	"context"
	"fmt"
	"sync"

	"github.com/ptrow/rawhidhub/internal/allocator"
	"github.com/ptrow/rawhidhub/internal/clock"
	"github.com/ptrow/rawhidhub/internal/constants"
	"github.com/ptrow/rawhidhub/internal/discovery"
	"github.com/ptrow/rawhidhub/internal/dispatch"
	"github.com/ptrow/rawhidhub/internal/interfaces"
	"github.com/ptrow/rawhidhub/internal/logging"
	"github.com/ptrow/rawhidhub/internal/outqueue"
	"github.com/ptrow/rawhidhub/internal/protocol"
	"github.com/ptrow/rawhidhub/internal/registry"
)

// Params configures a hub instance, mirroring the shape of the teacher's
// DeviceParams (one struct, sensible zero values, a single required
// field).
type Params struct {
	// Transport is required: it is the hub's only way to discover and
	// talk to raw-HID endpoints.
	Transport interfaces.Transport

	// Verbosity is the spec.md §6 bitmask controlling which categories of
	// status/stats/traffic/discard logging are emitted.
	Verbosity logging.Verbosity
}

// Options carries collaborators a caller may override; all are optional,
// matching the teacher's Options (Context/Logger/Observer all nil-safe).
type Options struct {
	// Context, if set, takes precedence over the ctx argument to Serve
	// for cancellation (kept for parity with the teacher's own
	// Options.Context despite Serve already taking a ctx parameter
	// directly; some callers embed Options across multiple call sites).
	Context context.Context

	// Logger receives status/stats/traffic lines; if nil, a logger
	// writing to os.Stderr at LevelInfo is created.
	Logger *logging.Logger

	// Clock overrides the production monotonic clock; tests supply a
	// fake one. Production callers should leave this nil.
	Clock clock.Clock
}

// Hub is a running instance of the two cooperating workers described in
// spec.md §2: discovery and dispatch. Construct one with Serve; stop it
// with StopAndWait.
type Hub struct {
	registry *registry.Registry
	engine   *protocol.Engine
	metrics  *Metrics

	dispatchWorker  *dispatch.Worker
	discoveryWorker *discovery.Worker

	logger *logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// Serve wires up the registry, allocator, outgoing queues, protocol
// engine, and the two workers, then launches both in their own
// goroutines and returns immediately — it does not block until shutdown,
// matching the teacher's CreateAndServe which returns a running *Device.
func Serve(ctx context.Context, params Params, options *Options) (*Hub, error) {
	if params.Transport == nil {
		return nil, NewError("Serve", ErrCodeTransportInit, "Params.Transport is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if options == nil {
		options = &Options{}
	}
	if options.Context != nil {
		ctx = options.Context
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.DefaultConfig())
	}

	basicLogger := interfaces.Logger(logger)
	if !params.Verbosity.Has(logging.VerboseBasic) {
		basicLogger = logging.Discard()
	}

	reg := registry.New()
	outq := outqueue.New(basicLogger, nil)
	alloc := allocator.New(outq)
	metrics := NewMetrics()

	obs := MultiObserver{metrics}
	if params.Verbosity != 0 {
		obs = append(obs, &TrafficLogger{Logger: logger, Verbosity: params.Verbosity})
	}

	engine := protocol.New(alloc, outq, logger, obs)

	var statsSink dispatch.StatsSink
	if params.Verbosity.Has(logging.VerboseStats) {
		statsSink = &StatsPrinter{Metrics: metrics, Logger: logger}
	}

	cl := options.Clock
	if cl == nil {
		cl = clock.Real{}
	}

	dw := dispatch.New(dispatch.Config{
		Registry:  reg,
		Engine:    engine,
		Clock:     cl,
		Logger:    logger,
		StatsSink: statsSink,
	})
	disc := discovery.New(discovery.Config{
		Transport: params.Transport,
		Registry:  reg,
		Clock:     cl,
		Logger:    basicLogger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	h := &Hub{
		registry:        reg,
		engine:          engine,
		metrics:         metrics,
		dispatchWorker:  dw,
		discoveryWorker: disc,
		logger:          logger,
		cancel:          cancel,
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		dw.Run(runCtx)
	}()
	go func() {
		defer h.wg.Done()
		disc.Run(runCtx)
	}()

	logger.Info("hub started")
	return h, nil
}

// Metrics returns the hub's counters, for callers that want to inspect
// them outside the periodic stats print (e.g. a health endpoint). They
// are cumulative unless Params.Verbosity includes VerboseStats, in which
// case StatsPrinter resets them after every stats interval.
func (h *Hub) Metrics() *Metrics { return h.metrics }

// Registry exposes the session registry for diagnostics and tests; the
// dispatch/discovery workers remain its only mutators.
func (h *Hub) Registry() *registry.Registry { return h.registry }

// StopAndWait requests shutdown, blocks until both workers have exited,
// and then sends the shutdown broadcast to every still-registered session
// and closes its endpoint. If ctx ends before the workers exit, it
// returns an error without broadcasting. It follows the teacher's
// StopAndDelete in cancelling first, but waits for the workers before
// its best-effort cleanup rather than after.
func StopAndWait(ctx context.Context, h *Hub) error {
	if h == nil {
		return NewError("StopAndWait", ErrCodeNotRunning, "nil hub")
	}

	var stopErr error
	h.stopOnce.Do(func() {
		h.cancel()

		// Unblock any free-handshake spin (registry.Registry.UnlinkAndFree)
		// right alongside cancellation, per spec.md §5's "shutdown
		// explicitly raises new-iteration to unblock this spin". Without
		// this, a discovery scan that reaches UnlinkAndFree after the
		// dispatch worker's last BeginPass call would spin forever: once
		// dispatch exits for good, nothing else ever advances the
		// generation counter the spin is waiting on.
		h.registry.ForceUnblock()

		// Give the dispatch worker's final post-cancellation pass (see
		// dispatch.Worker.Run) a chance to land before broadcasting, so
		// shutdown doesn't race a forward that was already in flight.
		done := make(chan struct{})
		go func() {
			h.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("rawhidhub: %w waiting for workers to stop", ctx.Err())
			return
		}

		broadcast := protocol.ShutdownBroadcast()
		h.registry.Iterate(func(s *registry.Session) {
			if s.DeviceID() == constants.Unassigned {
				return
			}
			if _, err := s.Endpoint().Write(broadcast[:]); err != nil {
				h.logger.Debug("shutdown broadcast write failed", "path", s.Path, "error", err.Error())
			}
			_ = s.Endpoint().Close()
		})

		h.logger.Info("hub stopped")
	})
	return stopErr
}
