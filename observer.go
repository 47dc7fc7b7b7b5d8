package rawhidhub

import (
	"github.com/ptrow/rawhidhub/internal/interfaces"
	"github.com/ptrow/rawhidhub/internal/logging"
)

// MultiObserver fans every observation out to each of its members,
// mirroring the teacher's single-Observer Options.Observer field except
// that this hub always needs at least two: Metrics for StatsPrinter's
// periodic print (metrics.go), and (optionally) TrafficLogger for -v gated per-report
// tracing. Keeping both behind interfaces.Observer rather than special-
// casing logging inside Metrics keeps the two concerns independent, the
// way the teacher keeps NewMetricsObserver separate from any logging
// observer a caller might also install.
type MultiObserver []interfaces.Observer

var _ interfaces.Observer = MultiObserver(nil)

func (m MultiObserver) ObserveRegistered(id int) {
	for _, o := range m {
		o.ObserveRegistered(id)
	}
}

func (m MultiObserver) ObserveUnregistered(id int) {
	for _, o := range m {
		o.ObserveUnregistered(id)
	}
}

func (m MultiObserver) ObserveForwarded(fromID, toID, bytes int) {
	for _, o := range m {
		o.ObserveForwarded(fromID, toID, bytes)
	}
}

func (m MultiObserver) ObserveBroadcast(id int) {
	for _, o := range m {
		o.ObserveBroadcast(id)
	}
}

func (m MultiObserver) ObserveDropped(reason string) {
	for _, o := range m {
		o.ObserveDropped(reason)
	}
}

func (m MultiObserver) ObserveQueueDepth(id, depth int) {
	for _, o := range m {
		o.ObserveQueueDepth(id, depth)
	}
}

// TrafficLogger implements interfaces.Observer by writing one log line
// per observation, gated by the verbosity bits spec.md §4.J/§6 define:
// register/unregister/broadcast under VerboseHub, forwards under
// VerboseDevice, drops under VerboseDiscard. Queue-depth samples are
// deliberately not logged here — outqueue.Table already warns once past
// its soft watermark, and per-report queue-depth lines would be far too
// chatty even at full verbosity.
type TrafficLogger struct {
	Logger    interfaces.Logger
	Verbosity logging.Verbosity
}

var _ interfaces.Observer = (*TrafficLogger)(nil)

func (t *TrafficLogger) ObserveRegistered(id int) {
	if t.Verbosity.Has(logging.VerboseHub) {
		t.Logger.Info("device registered", "id", id)
	}
}

func (t *TrafficLogger) ObserveUnregistered(id int) {
	if t.Verbosity.Has(logging.VerboseHub) {
		t.Logger.Info("device unregistered", "id", id)
	}
}

func (t *TrafficLogger) ObserveBroadcast(id int) {
	if t.Verbosity.Has(logging.VerboseHub) {
		t.Logger.Info("membership broadcast queued", "id", id)
	}
}

func (t *TrafficLogger) ObserveForwarded(fromID, toID, bytes int) {
	if t.Verbosity.Has(logging.VerboseDevice) {
		t.Logger.Info("forwarded report", "from", fromID, "to", toID, "bytes", bytes)
	}
}

func (t *TrafficLogger) ObserveDropped(reason string) {
	if t.Verbosity.Has(logging.VerboseDiscard) {
		t.Logger.Info("report discarded", "reason", reason)
	}
}

func (t *TrafficLogger) ObserveQueueDepth(int, int) {}
