package rawhidhub

import (
	"time"

	"github.com/ptrow/rawhidhub/transport"
)

// MockTransport and MockEndpoint give library consumers the teacher's
// MockBackend pattern (testing.go) for writing their own tests against a
// running Hub without physical HID hardware. They are thin re-exports of
// transport.Sim/transport.SimEndpoint: the simulation logic itself lives
// in the transport package (grounded on the teacher's stub-runner mode)
// so it can also be used internally by this repo's own tests; these
// aliases just give external callers the familiar Mock* name.
type (
	MockTransport = transport.Sim
	MockEndpoint  = transport.SimEndpoint
)

// NewMockTransport returns an empty simulated transport. Call Plug to add
// devices before Serve's discovery worker enumerates them.
func NewMockTransport() *MockTransport { return transport.NewSim() }

// RegisterReport builds the 32-byte report firmware sends to request
// identifier assignment (spec.md §4.F): byte 0 = HubCommandID, byte 1 =
// HUB, byte 2 = CmdRegister.
func RegisterReport() [ReportSize]byte {
	var r [ReportSize]byte
	r[0] = byte(0x27)
	r[1] = byte(HubID)
	r[2] = byte(0x01)
	return r
}

// UnregisterReport builds the 32-byte report firmware sends to release
// its identifier (spec.md §4.F).
func UnregisterReport() [ReportSize]byte {
	var r [ReportSize]byte
	r[0] = byte(0x27)
	r[1] = byte(HubID)
	r[2] = byte(0x00)
	return r
}

// ForwardReport builds a 32-byte report addressed to dst, with payload
// copied into bytes 3 onward (truncated if it doesn't fit).
func ForwardReport(dst uint8, payload []byte) [ReportSize]byte {
	var r [ReportSize]byte
	r[0] = byte(0x27)
	r[1] = dst
	copy(r[3:], payload)
	return r
}

// waitFor polls cond every few milliseconds until it returns true or
// timeout elapses, for tests asserting on state the dispatch/discovery
// goroutines mutate asynchronously. Mirrors the teacher's own polling
// waitLive helper (backend.go) rather than reaching for a channel-based
// synchronization primitive the production code doesn't otherwise need.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// WaitForCondition exposes waitFor to external test packages that embed a
// Hub in their own integration tests.
func WaitForCondition(timeout time.Duration, cond func() bool) bool {
	return waitFor(timeout, cond)
}
