package rawhidhub

import (
	"bytes"
	"testing"

	"github.com/ptrow/rawhidhub/internal/logging"
)

func TestMultiObserverFansOut(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()
	multi := MultiObserver{m1, m2}

	multi.ObserveRegistered(1)
	multi.ObserveForwarded(1, 2, 32)
	multi.ObserveDropped("x")

	for _, m := range []*Metrics{m1, m2} {
		snap := m.Snapshot()
		if snap.RegisteredTotal != 1 || snap.ForwardedTotal != 1 || snap.DroppedTotal != 1 {
			t.Fatalf("expected both observers to receive every event, got %+v", snap)
		}
	}
}

func TestTrafficLoggerGatesOnVerbosity(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.Config{Level: logging.LevelDebug, Format: "text", Output: &buf})

	tl := &TrafficLogger{Logger: logger, Verbosity: logging.VerboseHub}
	tl.ObserveRegistered(1)
	tl.ObserveForwarded(1, 2, 32) // device traffic, not enabled
	tl.ObserveDropped("reason")   // discard, not enabled

	out := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte("device registered")) {
		t.Errorf("expected hub traffic logged, got: %s", out)
	}
	if bytes.Contains(buf.Bytes(), []byte("forwarded report")) {
		t.Errorf("expected device traffic suppressed, got: %s", out)
	}
	if bytes.Contains(buf.Bytes(), []byte("report discarded")) {
		t.Errorf("expected discard traffic suppressed, got: %s", out)
	}
}
