package outqueue

import (
	"bytes"
	"testing"

	"github.com/ptrow/rawhidhub/internal/logging"
)

func TestPushPopOrder(t *testing.T) {
	tbl := New(logging.Discard(), nil)
	var r1, r2 Report
	r1[0] = 1
	r2[0] = 2

	tbl.Push(5, r1)
	tbl.Push(5, r2)

	got, ok := tbl.Pop(5)
	if !ok || got != r1 {
		t.Fatalf("expected r1 first, got %v ok=%v", got, ok)
	}
	got, ok = tbl.Pop(5)
	if !ok || got != r2 {
		t.Fatalf("expected r2 second, got %v ok=%v", got, ok)
	}
	if _, ok := tbl.Pop(5); ok {
		t.Fatal("expected queue to be empty")
	}
}

func TestClearAndClearAll(t *testing.T) {
	tbl := New(logging.Discard(), nil)
	var r Report
	tbl.Push(3, r)
	tbl.Push(4, r)

	tbl.Clear(3)
	if tbl.Len(3) != 0 {
		t.Fatalf("Len(3) = %d after Clear, want 0", tbl.Len(3))
	}
	if tbl.Len(4) != 1 {
		t.Fatalf("Len(4) = %d, want 1", tbl.Len(4))
	}

	tbl.ClearAll()
	if tbl.Len(4) != 0 {
		t.Fatalf("Len(4) = %d after ClearAll, want 0", tbl.Len(4))
	}
}

func TestSoftWatermarkWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.Config{Level: logging.LevelDebug, Format: "text", Output: &buf})
	tbl := New(logger, nil)

	var r Report
	for i := 0; i < 4096; i++ {
		tbl.Push(9, r)
	}
	if !bytes.Contains(buf.Bytes(), []byte("soft watermark")) {
		t.Fatalf("expected a soft watermark warning, got: %s", buf.String())
	}
}

func TestReadBufPool(t *testing.T) {
	b := GetReadBuf()
	if len(b) != 32 {
		t.Fatalf("GetReadBuf() len = %d, want 32", len(b))
	}
	PutReadBuf(b)
}
