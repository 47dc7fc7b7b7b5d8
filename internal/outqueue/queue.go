// Package outqueue holds the per-identifier FIFO of pending outbound
// reports. Only the dispatch worker touches these queues, so no locking
// is needed beyond what a plain slice-backed ring buffer already gives a
// single goroutine; the package exists to keep that bookkeeping out of
// the dispatch loop itself.
package outqueue

import (
	"github.com/ptrow/rawhidhub/internal/constants"
	"github.com/ptrow/rawhidhub/internal/interfaces"
)

// Report is one fixed-size raw-HID payload.
type Report [constants.ReportSize]byte

// Table holds one FIFO per identifier in the allocator's ID space.
type Table struct {
	queues   [constants.NUniqueDeviceIDs]*queue
	logger   interfaces.Logger
	observer interfaces.Observer
}

type queue struct {
	buf []Report
}

func (q *queue) push(r Report) {
	q.buf = append(q.buf, r)
}

func (q *queue) pop() (Report, bool) {
	if len(q.buf) == 0 {
		return Report{}, false
	}
	r := q.buf[0]
	// Re-slicing rather than copying the tail keeps pop O(1); the
	// underlying array is reused by append until it needs to grow again.
	q.buf = q.buf[1:]
	return r, true
}

func (q *queue) clear() {
	q.buf = q.buf[:0]
}

// New returns an empty Table. logger and observer may be the discard/no-op
// implementations; both are optional.
func New(logger interfaces.Logger, observer interfaces.Observer) *Table {
	if observer == nil {
		observer = interfaces.NoOpObserver{}
	}
	return &Table{logger: logger, observer: observer}
}

func (t *Table) get(id uint8) *queue {
	q := t.queues[id]
	if q == nil {
		q = &queue{}
		t.queues[id] = q
	}
	return q
}

// Push appends report to id's queue, logging a soft-watermark warning the
// first time the queue crosses OutqueueWarnLen so overload is visible
// without imposing an actual cap.
func (t *Table) Push(id uint8, report Report) {
	q := t.get(id)
	before := len(q.buf)
	q.push(report)
	if before < constants.OutqueueWarnLen && len(q.buf) >= constants.OutqueueWarnLen {
		if t.logger != nil {
			t.logger.Warn("outgoing queue crossed soft watermark", "id", id, "len", len(q.buf))
		}
	}
	if t.observer != nil {
		t.observer.ObserveQueueDepth(int(id), len(q.buf))
	}
}

// Pop removes and returns the oldest queued report for id, if any.
func (t *Table) Pop(id uint8) (Report, bool) {
	return t.get(id).pop()
}

// Len reports how many reports are queued for id.
func (t *Table) Len(id uint8) int {
	return len(t.get(id).buf)
}

// Clear discards every queued report for id.
func (t *Table) Clear(id uint8) {
	t.get(id).clear()
}

// ClearAll discards every queued report for every identifier.
func (t *Table) ClearAll() {
	for i := range t.queues {
		if t.queues[i] != nil {
			t.queues[i].clear()
		}
	}
}
