package rawhidhub

import (
	"bytes"
	"testing"

	"github.com/ptrow/rawhidhub/internal/dispatch"
	"github.com/ptrow/rawhidhub/internal/logging"
)

func TestMetricsObserveAndSnapshot(t *testing.T) {
	m := NewMetrics()
	m.ObserveRegistered(1)
	m.ObserveRegistered(2)
	m.ObserveUnregistered(1)
	m.ObserveForwarded(1, 2, 32)
	m.ObserveForwarded(1, 2, 32)
	m.ObserveBroadcast(2)
	m.ObserveDropped("unknown-destination")

	snap := m.Snapshot()
	if snap.RegisteredTotal != 2 {
		t.Errorf("RegisteredTotal = %d, want 2", snap.RegisteredTotal)
	}
	if snap.UnregisteredTotal != 1 {
		t.Errorf("UnregisteredTotal = %d, want 1", snap.UnregisteredTotal)
	}
	if snap.ForwardedTotal != 2 {
		t.Errorf("ForwardedTotal = %d, want 2", snap.ForwardedTotal)
	}
	if snap.PairCounts[[2]int32{1, 2}] != 2 {
		t.Errorf("PairCounts[1->2] = %d, want 2", snap.PairCounts[[2]int32{1, 2}])
	}
	if snap.DroppedByReason["unknown-destination"] != 1 {
		t.Errorf("DroppedByReason[unknown-destination] = %d, want 1", snap.DroppedByReason["unknown-destination"])
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.ObserveForwarded(1, 2, 32)
	m.Reset()
	snap := m.Snapshot()
	if snap.ForwardedTotal != 0 || len(snap.PairCounts) != 0 {
		t.Fatalf("expected zeroed metrics after Reset, got %+v", snap)
	}
}

func TestStatsPrinterLogsAndResets(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.Config{Level: logging.LevelInfo, Format: "text", Output: &buf})
	m := NewMetrics()
	m.ObserveForwarded(1, 2, 32)

	p := &StatsPrinter{Metrics: m, Logger: logger}
	p.Observe(dispatch.Stats{IterationsSinceReset: 5000})

	if !bytes.Contains(buf.Bytes(), []byte("iterations_per_sec")) {
		t.Errorf("expected iteration rate line, got: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("1->2: 1")) {
		t.Errorf("expected pair count line, got: %s", buf.String())
	}

	snap := m.Snapshot()
	if snap.ForwardedTotal != 0 {
		t.Error("expected StatsPrinter.Observe to reset Metrics")
	}
}
