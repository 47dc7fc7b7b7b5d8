package rawhidhub

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ptrow/rawhidhub/internal/dispatch"
	"github.com/ptrow/rawhidhub/internal/interfaces"
)

// Metrics tracks operational counters for a running Hub. It implements
// internal/interfaces.Observer, so the dispatch hot path can record every
// register/unregister/forward/drop without knowing this package exists.
type Metrics struct {
	RegisteredTotal   atomic.Uint64
	UnregisteredTotal atomic.Uint64
	ForwardedTotal    atomic.Uint64
	BroadcastTotal    atomic.Uint64
	DroppedTotal      atomic.Uint64

	StartTime atomic.Int64 // UnixNano

	mu              sync.Mutex
	droppedByReason map[string]uint64
	pairCounts      map[[2]int32]uint64
	queueDepth      map[int]int
}

// NewMetrics returns a Metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{
		droppedByReason: make(map[string]uint64),
		pairCounts:      make(map[[2]int32]uint64),
		queueDepth:      make(map[int]int),
	}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

var _ interfaces.Observer = (*Metrics)(nil)

func (m *Metrics) ObserveRegistered(int)   { m.RegisteredTotal.Add(1) }
func (m *Metrics) ObserveUnregistered(int) { m.UnregisteredTotal.Add(1) }
func (m *Metrics) ObserveBroadcast(int)    { m.BroadcastTotal.Add(1) }

func (m *Metrics) ObserveForwarded(fromID, toID int, bytes int) {
	m.ForwardedTotal.Add(1)
	m.mu.Lock()
	m.pairCounts[[2]int32{int32(fromID), int32(toID)}]++
	m.mu.Unlock()
}

func (m *Metrics) ObserveDropped(reason string) {
	m.DroppedTotal.Add(1)
	m.mu.Lock()
	m.droppedByReason[reason]++
	m.mu.Unlock()
}

func (m *Metrics) ObserveQueueDepth(id int, depth int) {
	m.mu.Lock()
	m.queueDepth[id] = depth
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time read of the cumulative counters.
type MetricsSnapshot struct {
	RegisteredTotal   uint64
	UnregisteredTotal uint64
	ForwardedTotal    uint64
	BroadcastTotal    uint64
	DroppedTotal      uint64
	DroppedByReason   map[string]uint64
	PairCounts        map[[2]int32]uint64
	UptimeNs          int64
}

// Snapshot returns the current cumulative counters without resetting
// them.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	byReason := make(map[string]uint64, len(m.droppedByReason))
	for k, v := range m.droppedByReason {
		byReason[k] = v
	}
	pairs := make(map[[2]int32]uint64, len(m.pairCounts))
	for k, v := range m.pairCounts {
		pairs[k] = v
	}

	return MetricsSnapshot{
		RegisteredTotal:   m.RegisteredTotal.Load(),
		UnregisteredTotal: m.UnregisteredTotal.Load(),
		ForwardedTotal:    m.ForwardedTotal.Load(),
		BroadcastTotal:    m.BroadcastTotal.Load(),
		DroppedTotal:      m.DroppedTotal.Load(),
		DroppedByReason:   byReason,
		PairCounts:        pairs,
		UptimeNs:          time.Now().UnixNano() - m.StartTime.Load(),
	}
}

// Reset zeroes every counter, including the per-pair forwarding counts.
// StatsPrinter calls this after each print so every interval reports a
// delta rather than a running total, per the observability design
// (stats print "...since the last print, then reset counters").
func (m *Metrics) Reset() {
	m.RegisteredTotal.Store(0)
	m.UnregisteredTotal.Store(0)
	m.ForwardedTotal.Store(0)
	m.BroadcastTotal.Store(0)
	m.DroppedTotal.Store(0)
	m.mu.Lock()
	m.droppedByReason = make(map[string]uint64)
	m.pairCounts = make(map[[2]int32]uint64)
	m.mu.Unlock()
}

// StatsPrinter is the dispatch.StatsSink wired into the hub's main loop.
// It combines the iteration count dispatch reports with the per-pair
// forward counts Metrics has been accumulating, logs one line for the
// iteration rate plus one line per nonzero pair, and resets Metrics for
// the next interval.
type StatsPrinter struct {
	Metrics *Metrics
	Logger  interfaces.Logger
}

var _ dispatch.StatsSink = (*StatsPrinter)(nil)

// Observe implements dispatch.StatsSink.
func (p *StatsPrinter) Observe(s dispatch.Stats) {
	snap := p.Metrics.Snapshot()
	seconds := StatsIntervalSeconds
	rate := float64(s.IterationsSinceReset) / seconds

	if p.Logger != nil {
		p.Logger.Info("stats", "iterations_per_sec", fmt.Sprintf("%.1f", rate))
		for _, line := range formatPairCounts(snap.PairCounts) {
			p.Logger.Info(line)
		}
	}
	p.Metrics.Reset()
}

func formatPairCounts(pairs map[[2]int32]uint64) []string {
	type pair struct {
		from, to int32
		count    uint64
	}
	sorted := make([]pair, 0, len(pairs))
	for k, v := range pairs {
		sorted = append(sorted, pair{k[0], k[1], v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].from != sorted[j].from {
			return sorted[i].from < sorted[j].from
		}
		return sorted[i].to < sorted[j].to
	})
	lines := make([]string, 0, len(sorted))
	for _, p := range sorted {
		lines = append(lines, fmt.Sprintf("%d->%d: %d", p.from, p.to, p.count))
	}
	return lines
}
