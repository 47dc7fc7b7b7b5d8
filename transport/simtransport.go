package transport

import (
	"sync"
	"time"

	"github.com/ptrow/rawhidhub/internal/interfaces"
)

// Sim is an interfaces.Transport that never touches real USB hardware,
// grounded on the teacher's NewStubRunner/stubLoop simulation mode
// (internal/queue/runner.go): where the teacher falls back to a stub
// loop that just waits for cancellation when no char device is
// available, Sim lets the dispatch/discovery pair run end-to-end against
// endpoints whose reports are driven entirely by test code.
//
// Devices are added and removed with Plug/Unplug; Enumerate reports
// whatever is currently plugged in, so a test can simulate a device
// disconnecting mid-run the same way the real discovery loop would
// notice a physical unplug.
type Sim struct {
	mu      sync.Mutex
	plugged map[string]interfaces.DeviceInfo
	opened  map[string]*SimEndpoint
}

// NewSim returns an empty simulated transport.
func NewSim() *Sim {
	return &Sim{
		plugged: make(map[string]interfaces.DeviceInfo),
		opened:  make(map[string]*SimEndpoint),
	}
}

// Plug adds a device at path to the simulated bus and returns the
// SimEndpoint test code uses to inject inbound reports and inspect
// outbound ones. info is recorded as given, with Path set to path; no
// usage page/usage defaults are filled in, so the discovery worker only
// opens the device if info carries the raw-HID usage page and usage.
func (s *Sim) Plug(path string, info interfaces.DeviceInfo) *SimEndpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	info.Path = path
	s.plugged[path] = info
	ep := newSimEndpoint(info)
	s.opened[path] = ep
	return ep
}

// Unplug removes path from the simulated bus; the next Enumerate call
// will no longer report it, which is what drives the discovery worker's
// two-phase retirement in an end-to-end test.
func (s *Sim) Unplug(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plugged, path)
}

// Enumerate implements interfaces.Transport.
func (s *Sim) Enumerate() ([]interfaces.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interfaces.DeviceInfo, 0, len(s.plugged))
	for _, info := range s.plugged {
		out = append(out, info)
	}
	return out, nil
}

// Open implements interfaces.Transport, returning the same SimEndpoint
// handed out by Plug so test code can keep driving it after discovery
// opens the session.
func (s *Sim) Open(info interfaces.DeviceInfo) (interfaces.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.opened[info.Path]
	if !ok {
		ep = newSimEndpoint(info)
		s.opened[info.Path] = ep
	}
	return ep, nil
}

// SimEndpoint is an in-memory interfaces.Endpoint: inbound reports queued
// by test code via Inject are what Read returns; reports the hub writes
// are captured in Written for assertions.
type SimEndpoint struct {
	mu      sync.Mutex
	info    interfaces.DeviceInfo
	inbox   [][]byte
	Written [][]byte
	closed  bool
}

func newSimEndpoint(info interfaces.DeviceInfo) *SimEndpoint {
	return &SimEndpoint{info: info}
}

// Inject queues report as the next bytes Read will return.
func (e *SimEndpoint) Inject(report []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := append([]byte(nil), report...)
	e.inbox = append(e.inbox, cp)
}

// Read implements interfaces.Endpoint: non-blocking, returns (0, nil)
// when nothing is queued, matching spec.md §4.B's "0 meaning nothing
// pending" contract.
func (e *SimEndpoint) Read(p []byte, _ time.Duration) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, errEndpointClosed
	}
	if len(e.inbox) == 0 {
		return 0, nil
	}
	next := e.inbox[0]
	e.inbox = e.inbox[1:]
	return copy(p, next), nil
}

// Write implements interfaces.Endpoint, recording p for later assertion.
func (e *SimEndpoint) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, errEndpointClosed
	}
	e.Written = append(e.Written, append([]byte(nil), p...))
	return len(p), nil
}

// Close implements interfaces.Endpoint. Safe to call more than once.
func (e *SimEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Info implements interfaces.Endpoint.
func (e *SimEndpoint) Info() interfaces.DeviceInfo { return e.info }

// Drain returns and clears every report written to this endpoint so far,
// in order, for test assertions that care about exact sequences.
func (e *SimEndpoint) Drain() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.Written
	e.Written = nil
	return out
}

var errEndpointClosed = simError("transport: endpoint closed")

type simError string

func (e simError) Error() string { return string(e) }
