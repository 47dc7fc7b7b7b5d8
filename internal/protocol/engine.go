// Package protocol implements the hub wire protocol: classifying inbound
// reports, mutating the identifier allocator and outgoing queues in
// response, and building the membership-broadcast and shutdown-broadcast
// reports.
package protocol

import (
	"time"

	"github.com/ptrow/rawhidhub/internal/allocator"
	"github.com/ptrow/rawhidhub/internal/constants"
	"github.com/ptrow/rawhidhub/internal/interfaces"
	"github.com/ptrow/rawhidhub/internal/outqueue"
)

// Session is the minimal view of a registry session the engine needs.
type Session interface {
	allocator.Node
	Endpoint() interfaces.Endpoint
}

// Engine holds the shared allocator and outgoing-queue state the dispatch
// worker mutates on every pass. It is not safe for concurrent use from
// more than one goroutine; the dispatch worker is its sole caller.
type Engine struct {
	Allocator *allocator.Table
	Outq      *outqueue.Table
	Logger    interfaces.Logger
	Observer  interfaces.Observer

	// LastMessageTimeMs feeds the dispatch worker's adaptive sleep
	// decision; ProcessInbound updates it on every forwarded report.
	LastMessageTimeMs uint64
}

// New returns an Engine. logger/observer may be nil-safe implementations.
func New(alloc *allocator.Table, outq *outqueue.Table, logger interfaces.Logger, observer interfaces.Observer) *Engine {
	if observer == nil {
		observer = interfaces.NoOpObserver{}
	}
	return &Engine{Allocator: alloc, Outq: outq, Logger: logger, Observer: observer}
}

// ProcessInbound drains every available report from s's endpoint,
// classifying and handling each one per the hub protocol. nowMs is used
// to stamp LastMessageTimeMs on forwarded traffic.
func (e *Engine) ProcessInbound(s Session, nowMs uint64) {
	buf := outqueue.GetReadBuf()
	defer outqueue.PutReadBuf(buf)

	for {
		n, err := s.Endpoint().Read(buf, ReadDeadline)
		if err != nil || n <= 0 {
			return
		}
		e.handleOne(s, buf[:n], nowMs)
	}
}

func (e *Engine) handleOne(s Session, raw []byte, nowMs uint64) {
	var r outqueue.Report
	copy(r[:], raw)

	if r[0] != constants.HubCommandID {
		e.Observer.ObserveDropped("not-hub-command")
		return
	}

	if r[1] == constants.HubID {
		switch r[2] {
		case constants.CmdRegister:
			e.handleRegister(s)
		case constants.CmdUnregister:
			if s.DeviceID() == constants.Unassigned {
				return
			}
			e.Observer.ObserveUnregistered(int(s.DeviceID()))
			e.Allocator.Unregister(s)
		default:
			e.Observer.ObserveDropped("unknown-subcommand")
		}
		return
	}

	if s.DeviceID() == constants.Unassigned {
		e.Observer.ObserveDropped("unregistered-sender")
		return
	}

	dst := r[1]
	if !e.isAssigned(dst) {
		e.Observer.ObserveDropped("unknown-destination")
		return
	}

	r[1] = byte(s.DeviceID())
	e.Outq.Push(dst, r)
	e.Observer.ObserveForwarded(int(s.DeviceID()), int(dst), constants.ReportSize)
	e.LastMessageTimeMs = nowMs
}

func (e *Engine) isAssigned(id byte) bool {
	for _, a := range e.Allocator.AssignedIDs() {
		if a == id {
			return true
		}
	}
	return false
}

func (e *Engine) handleRegister(s Session) {
	switch e.Allocator.Register(s) {
	case allocator.Assigned:
		e.Observer.ObserveRegistered(int(s.DeviceID()))
		// Membership broadcast is queued once per pass by
		// BroadcastIfChanged; this registrant receives its copy there.
	case allocator.AlreadyRegistered:
		e.Outq.Push(byte(s.DeviceID()), e.snapshotFor(s.DeviceID()))
	case allocator.Full:
		if e.Logger != nil {
			e.Logger.Warn("register rejected: allocator full")
		}
		e.Observer.ObserveDropped("allocator-full")
	}
}

// snapshotFor builds a personal membership report for a single recipient,
// with that recipient's own identifier swapped into byte 2 ahead of the
// rest of the membership list.
func (e *Engine) snapshotFor(self int32) outqueue.Report {
	return e.membershipReport(byte(self))
}

// membershipReport builds a membership report addressed to recipient,
// with recipient's identifier first in the payload followed by every
// other currently assigned identifier.
func (e *Engine) membershipReport(recipient byte) outqueue.Report {
	var r outqueue.Report
	r[0] = constants.HubCommandID
	r[1] = constants.HubID
	r[2] = recipient

	i := 3
	for _, id := range e.Allocator.AssignedIDs() {
		if id == recipient {
			continue
		}
		if i >= len(r) {
			break
		}
		r[i] = id
		i++
	}
	return r
}

// BroadcastIfChanged queues a fresh membership report to every currently
// registered identifier if Register/Unregister mutated the table this
// pass. Call once per dispatch pass, after every session's inbound
// traffic has been processed.
func (e *Engine) BroadcastIfChanged() {
	if !e.Allocator.ConsumeChanged() {
		return
	}
	for _, id := range e.Allocator.AssignedIDs() {
		e.Outq.Push(id, e.membershipReport(id))
		e.Observer.ObserveBroadcast(int(id))
	}
}

// DrainOutgoing writes every report queued for s to its endpoint, in
// order. A write failure is best-effort: it aborts draining for this
// session this pass but the queue retains any remaining reports for the
// next pass, consistent with the protocol's best-effort write semantics.
func (e *Engine) DrainOutgoing(s Session) {
	id := s.DeviceID()
	if id == constants.Unassigned {
		return
	}
	u8 := byte(id)
	for {
		r, ok := e.Outq.Pop(u8)
		if !ok {
			return
		}
		if _, err := s.Endpoint().Write(r[:]); err != nil {
			if e.Logger != nil {
				e.Logger.Debug("write failed", "id", u8, "error", err.Error())
			}
			return
		}
	}
}

// ShutdownBroadcast returns the report sent to every registered session
// at hub shutdown: a membership report whose payload is the UNASSIGNED
// sentinel, telling firmware the hub is going away.
func ShutdownBroadcast() outqueue.Report {
	var r outqueue.Report
	r[0] = constants.HubCommandID
	r[1] = constants.HubID
	r[2] = constants.Unassigned
	return r
}

// ReadDeadline is the non-blocking read timeout used for every session
// read in the dispatch loop; zero means "return immediately if idle".
const ReadDeadline = 0 * time.Millisecond
