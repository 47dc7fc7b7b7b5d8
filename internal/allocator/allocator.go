// Package allocator assigns and retires the small integer identifiers
// sessions use to address one another. It is driven exclusively by the
// dispatch worker's single goroutine, so its state needs no
// synchronization of its own.
package allocator

import (
	"github.com/ptrow/rawhidhub/internal/constants"
	"github.com/ptrow/rawhidhub/internal/outqueue"
)

// Result reports the outcome of a Register call.
type Result int

const (
	Assigned Result = iota
	AlreadyRegistered
	Full
)

// Node is the minimal view of a session the allocator needs: a place to
// read and write the current identifier assignment. *registry.Session
// satisfies this.
type Node interface {
	DeviceID() int32
	SetDeviceID(id int32)
}

// Table is the identifier assignment table described by the protocol:
// an assignment bitmap, an ordered list of currently assigned
// identifiers (the membership list broadcast to peers), and a
// round-robin cursor for the next candidate identifier.
type Table struct {
	isAssigned  [constants.NUniqueDeviceIDs]bool
	assignedIDs [constants.MaxRegisteredDevices]uint8
	nRegistered int
	cursor      uint8

	outq *outqueue.Table

	// changed is set by Register/Unregister and cleared by
	// ConsumeChanged; the dispatch worker polls it once per pass to
	// decide whether a membership broadcast is due.
	changed bool
}

// New returns an empty Table. outq is used to clear a session's outgoing
// queue on Unregister; it may be nil in tests that don't care about that
// side effect.
func New(outq *outqueue.Table) *Table {
	return &Table{cursor: constants.FirstAllocatableID, outq: outq}
}

// AssignedIDs returns the current membership list in assignment order.
// The returned slice aliases the table's internal storage and must not be
// retained past the next Register/Unregister call.
func (t *Table) AssignedIDs() []uint8 {
	return t.assignedIDs[:t.nRegistered]
}

// Count returns how many identifiers are currently assigned.
func (t *Table) Count() int { return t.nRegistered }

// ConsumeChanged reports whether any Register/Unregister happened since
// the last call, clearing the flag.
func (t *Table) ConsumeChanged() bool {
	v := t.changed
	t.changed = false
	return v
}

// Register assigns node the next available identifier. It is idempotent:
// calling it again on an already-registered node is a no-op that returns
// AlreadyRegistered.
func (t *Table) Register(node Node) Result {
	if id := node.DeviceID(); id != constants.Unassigned && id >= 0 && id < constants.NUniqueDeviceIDs {
		return AlreadyRegistered
	}
	if t.nRegistered == constants.MaxRegisteredDevices {
		return Full
	}

	id := t.cursor
	node.SetDeviceID(int32(id))
	t.isAssigned[id] = true
	t.assignedIDs[t.nRegistered] = id
	t.nRegistered++

	t.advanceCursor()
	t.changed = true
	return Assigned
}

// advanceCursor moves the cursor to the next candidate identifier,
// skipping HUB/UNASSIGNED, identifier 0 (reserved for devices whose
// firmware pre-assigns it; the allocator itself never hands it out), and
// every identifier currently in use.
func (t *Table) advanceCursor() {
	for {
		t.cursor++
		if int(t.cursor) >= constants.NUniqueDeviceIDs {
			t.cursor = 0
		}
		if t.cursor == constants.HubID || t.cursor == 0 {
			continue
		}
		if !t.isAssigned[t.cursor] {
			return
		}
	}
}

// Unregister releases node's identifier, if any, clears its outgoing
// queue, and removes it from the membership list. No-op if node is
// already unassigned.
func (t *Table) Unregister(node Node) {
	id := node.DeviceID()
	if id == constants.Unassigned || id < 0 || id >= constants.NUniqueDeviceIDs {
		return
	}
	u8 := uint8(id)

	if t.outq != nil {
		t.outq.Clear(u8)
	}

	for i := 0; i < t.nRegistered; i++ {
		if t.assignedIDs[i] == u8 {
			t.nRegistered--
			t.assignedIDs[i] = t.assignedIDs[t.nRegistered]
			break
		}
	}
	t.isAssigned[u8] = false
	node.SetDeviceID(constants.Unassigned)
	t.changed = true
}
