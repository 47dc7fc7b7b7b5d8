package protocol

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ptrow/rawhidhub/internal/allocator"
	"github.com/ptrow/rawhidhub/internal/constants"
	"github.com/ptrow/rawhidhub/internal/interfaces"
	"github.com/ptrow/rawhidhub/internal/logging"
	"github.com/ptrow/rawhidhub/internal/outqueue"
)

type fakeEndpoint struct {
	inbox [][]byte
	sent  [][]byte
}

func (f *fakeEndpoint) Read(p []byte, _ time.Duration) (int, error) {
	if len(f.inbox) == 0 {
		return 0, nil
	}
	next := f.inbox[0]
	f.inbox = f.inbox[1:]
	n := copy(p, next)
	return n, nil
}

func (f *fakeEndpoint) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	f.sent = append(f.sent, cp)
	return len(p), nil
}

func (f *fakeEndpoint) Close() error                { return nil }
func (f *fakeEndpoint) Info() interfaces.DeviceInfo { return interfaces.DeviceInfo{} }

type fakeSession struct {
	id int32
	ep *fakeEndpoint
}

func (s *fakeSession) DeviceID() int32          { return s.id }
func (s *fakeSession) SetDeviceID(id int32)     { s.id = id }
func (s *fakeSession) Endpoint() interfaces.Endpoint { return s.ep }

func newFakeSession() *fakeSession {
	return &fakeSession{id: constants.Unassigned, ep: &fakeEndpoint{}}
}

func registerReport() []byte {
	r := make([]byte, constants.ReportSize)
	r[0] = constants.HubCommandID
	r[1] = constants.HubID
	r[2] = constants.CmdRegister
	return r
}

func newEngine() *Engine {
	outq := outqueue.New(logging.Discard(), nil)
	alloc := allocator.New(outq)
	return New(alloc, outq, logging.Discard(), nil)
}

func TestSingleDeviceRegister(t *testing.T) {
	e := newEngine()
	d := newFakeSession()
	d.ep.inbox = [][]byte{registerReport()}

	e.ProcessInbound(d, 1)
	if d.id != constants.FirstAllocatableID {
		t.Fatalf("expected id %d, got %d", constants.FirstAllocatableID, d.id)
	}

	e.BroadcastIfChanged()
	e.DrainOutgoing(d)

	if len(d.ep.sent) != 1 {
		t.Fatalf("expected 1 report sent, got %d", len(d.ep.sent))
	}
	got := d.ep.sent[0]
	if got[0] != constants.HubCommandID || got[1] != constants.HubID || got[2] != byte(d.id) {
		t.Fatalf("unexpected membership report: %v", got[:4])
	}
	for _, b := range got[3:] {
		if b != 0 {
			t.Fatalf("expected zero-filled payload with no peers, got %v", got)
		}
	}
}

func TestTwoDevicesForward(t *testing.T) {
	e := newEngine()
	d1 := newFakeSession()
	d2 := newFakeSession()

	d1.ep.inbox = [][]byte{registerReport()}
	e.ProcessInbound(d1, 1)
	e.BroadcastIfChanged()
	e.DrainOutgoing(d1)

	d2.ep.inbox = [][]byte{registerReport()}
	e.ProcessInbound(d2, 2)
	e.BroadcastIfChanged()
	e.DrainOutgoing(d1)
	e.DrainOutgoing(d2)

	lastD1 := d1.ep.sent[len(d1.ep.sent)-1]
	lastD2 := d2.ep.sent[len(d2.ep.sent)-1]
	if lastD1[2] != byte(d1.id) || lastD1[3] != byte(d2.id) {
		t.Fatalf("d1 membership wrong: %v", lastD1[:4])
	}
	if lastD2[2] != byte(d2.id) || lastD2[3] != byte(d1.id) {
		t.Fatalf("d2 membership wrong: %v", lastD2[:4])
	}

	fwd := make([]byte, constants.ReportSize)
	fwd[0] = constants.HubCommandID
	fwd[1] = byte(d2.id)
	fwd[3] = 0xAB
	d1.ep.inbox = [][]byte{fwd}
	e.ProcessInbound(d1, 3)
	e.BroadcastIfChanged()
	e.DrainOutgoing(d2)

	last := d2.ep.sent[len(d2.ep.sent)-1]
	if last[1] != byte(d1.id) {
		t.Fatalf("expected byte 1 rewritten to sender id %d, got %d", d1.id, last[1])
	}
	if last[3] != 0xAB {
		t.Fatalf("expected payload preserved, got %v", last)
	}
}

func TestForwardToUnknownIDDropped(t *testing.T) {
	e := newEngine()
	d1 := newFakeSession()
	d1.ep.inbox = [][]byte{registerReport()}
	e.ProcessInbound(d1, 1)

	fwd := make([]byte, constants.ReportSize)
	fwd[0] = constants.HubCommandID
	fwd[1] = 7
	d1.ep.inbox = [][]byte{fwd}
	e.ProcessInbound(d1, 2)

	if e.Outq.Len(7) != 0 {
		t.Fatalf("expected nothing queued for unknown id 7, got %d", e.Outq.Len(7))
	}
}

func TestNonHubCommandDiscarded(t *testing.T) {
	e := newEngine()
	d1 := newFakeSession()
	junk := make([]byte, constants.ReportSize)
	junk[0] = 0x99
	d1.ep.inbox = [][]byte{junk}
	e.ProcessInbound(d1, 1)
	if d1.id != constants.Unassigned {
		t.Fatalf("expected session to remain unassigned, got %d", d1.id)
	}
}

func TestRegisterTwiceSendsSnapshot(t *testing.T) {
	e := newEngine()
	d1 := newFakeSession()
	d1.ep.inbox = [][]byte{registerReport()}
	e.ProcessInbound(d1, 1)
	e.BroadcastIfChanged()
	e.DrainOutgoing(d1)

	before := e.Allocator.Count()
	d1.ep.inbox = [][]byte{registerReport()}
	e.ProcessInbound(d1, 2)
	if e.Allocator.Count() != before {
		t.Fatalf("expected allocator count unchanged on duplicate register, got %d vs %d", e.Allocator.Count(), before)
	}
	e.DrainOutgoing(d1)
	last := d1.ep.sent[len(d1.ep.sent)-1]
	if last[2] != byte(d1.id) {
		t.Fatalf("expected personal snapshot with own id at byte 2, got %v", last[:4])
	}
}

func TestUnregisterClearsQueueAndID(t *testing.T) {
	e := newEngine()
	d1 := newFakeSession()
	d1.ep.inbox = [][]byte{registerReport()}
	e.ProcessInbound(d1, 1)
	id := byte(d1.id)

	var r outqueue.Report
	e.Outq.Push(id, r)

	unreg := make([]byte, constants.ReportSize)
	unreg[0] = constants.HubCommandID
	unreg[1] = constants.HubID
	unreg[2] = constants.CmdUnregister
	d1.ep.inbox = [][]byte{unreg}
	e.ProcessInbound(d1, 2)

	if d1.id != constants.Unassigned {
		t.Fatalf("expected unassigned after unregister, got %d", d1.id)
	}
	if e.Outq.Len(id) != 0 {
		t.Fatalf("expected queue cleared on unregister, len=%d", e.Outq.Len(id))
	}
}

func TestShutdownBroadcastShape(t *testing.T) {
	r := ShutdownBroadcast()
	if r[0] != constants.HubCommandID || r[1] != constants.HubID || r[2] != constants.Unassigned {
		t.Fatalf("unexpected shutdown broadcast: %v", r[:3])
	}
}

func TestAllocatorFullLogsAndDrops(t *testing.T) {
	e := newEngine()
	var logBuf bytes.Buffer
	e.Logger = logging.NewLogger(&logging.Config{Level: logging.LevelDebug, Format: "text", Output: &logBuf})
	sessions := make([]*fakeSession, constants.MaxRegisteredDevices)
	for i := range sessions {
		sessions[i] = newFakeSession()
		sessions[i].ep.inbox = [][]byte{registerReport()}
		e.ProcessInbound(sessions[i], uint64(i))
	}
	extra := newFakeSession()
	extra.ep.inbox = [][]byte{registerReport()}
	e.ProcessInbound(extra, 100)
	if extra.id != constants.Unassigned {
		t.Fatalf("expected extra session to remain unassigned when allocator full, got %d", extra.id)
	}
	if !strings.Contains(logBuf.String(), "allocator full") {
		t.Fatalf("expected an allocator-full log line, got: %s", logBuf.String())
	}
}
