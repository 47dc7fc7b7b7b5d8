// Package registry holds the lock-free singly-linked list of active
// sessions. The dispatch worker walks it on every pass while the
// discovery worker inserts and retires sessions concurrently. The
// dispatch worker never blocks on the discovery worker; the discovery
// worker waits on the dispatch worker only inside UnlinkAndFree's free
// handshake.
package registry

import (
	"sync/atomic"
	"time"

	"github.com/ptrow/rawhidhub/internal/constants"
	"github.com/ptrow/rawhidhub/internal/interfaces"
)

// Session tracks one open endpoint and its current identifier assignment.
// Every field that dispatch and discovery touch concurrently is atomic;
// fields touched only by discovery (seenThisScan, endpoint, Path) are not,
// since discovery is single-goroutine.
type Session struct {
	endpoint interfaces.Endpoint
	Path     string

	deviceID atomic.Int32 // constants.Unassigned until registered

	// seenThisScan is reset by MarkAllUnseen and set by discovery when an
	// enumeration pass still finds the endpoint's path attached. Owned
	// entirely by the discovery worker.
	seenThisScan bool

	// unregisterRequested is set by discovery once an endpoint disappears
	// from an enumeration pass, asking the dispatch worker to stop
	// forwarding to/from this session and acknowledge so it can be freed.
	unregisterRequested atomic.Bool

	// dispatchAcked is set by the dispatch worker once it has processed a
	// pass after unregisterRequested was set, telling discovery it is safe
	// to unlink and free this node.
	dispatchAcked atomic.Bool

	next atomic.Pointer[Session]
}

// NewSession wraps an open endpoint in a fresh, unregistered Session.
func NewSession(ep interfaces.Endpoint, path string) *Session {
	s := &Session{endpoint: ep, Path: path}
	s.deviceID.Store(constants.Unassigned)
	return s
}

// Endpoint returns the session's open endpoint.
func (s *Session) Endpoint() interfaces.Endpoint { return s.endpoint }

// DeviceID returns the session's current identifier assignment.
func (s *Session) DeviceID() int32 { return s.deviceID.Load() }

// SetDeviceID assigns (or clears, with constants.Unassigned) the
// session's identifier.
func (s *Session) SetDeviceID(id int32) { s.deviceID.Store(id) }

// RequestUnregister marks the session for retirement. Idempotent.
func (s *Session) RequestUnregister() { s.unregisterRequested.Store(true) }

// UnregisterRequested reports whether discovery has asked for retirement.
func (s *Session) UnregisterRequested() bool { return s.unregisterRequested.Load() }

// AckDispatch marks that the dispatch worker, having seen the
// unregistration request, has released the session's identifier and
// will not communicate with it again. It is set during that pass, as
// soon as the session is reached.
func (s *Session) AckDispatch() { s.dispatchAcked.Store(true) }

// DispatchAcked reports whether the dispatch worker has acknowledged.
func (s *Session) DispatchAcked() bool { return s.dispatchAcked.Load() }

// MarkSeen and Seen track the current discovery scan; both are only ever
// called from the discovery worker's own goroutine.
func (s *Session) MarkSeen()    { s.seenThisScan = true }
func (s *Session) MarkUnseen()  { s.seenThisScan = false }
func (s *Session) Seen() bool   { return s.seenThisScan }

// Registry is the lock-free list of live sessions.
type Registry struct {
	head atomic.Pointer[Session]

	// generation implements the free handshake (DESIGN.md component C):
	// the dispatch worker increments it once at the start of every pass,
	// before that pass reads head. UnlinkAndFree records the generation
	// current just after it removes a node from the list, then spins until
	// generation has advanced by two — proof that the pass in flight at
	// unlink time has finished (a pass's traversal completes before the
	// next increment) and that a later pass has started its walk from head
	// after the node was unlinked, so no goroutine can still be holding it
	// via a stale next pointer.
	generation atomic.Uint64

	// terminated is this registry's equivalent of spec.md §5's "shutdown
	// explicitly raises new-iteration to unblock this spin": since the
	// free handshake here waits on a generation counter rather than a
	// single new-iteration flag, and the dispatch worker stops advancing
	// that counter forever once it exits its final pass, a discovery scan
	// that reaches UnlinkAndFree after dispatch has already made its last
	// BeginPass call would otherwise spin forever. ForceUnblock sets this
	// flag once at shutdown so any in-progress or future spin releases
	// immediately instead.
	terminated atomic.Bool
}

// New returns an empty Registry.
func New() *Registry { return &Registry{} }

// InsertAtTail appends s to the end of the list. Only the discovery
// worker calls this, so there is no concurrent-insert race to resolve;
// the dispatch worker may be mid-traversal, which is safe since
// InsertAtTail only ever publishes a fully-initialized node via a single
// atomic store to the current tail's next pointer (or head, if empty).
func (r *Registry) InsertAtTail(s *Session) {
	for {
		head := r.head.Load()
		if head == nil {
			if r.head.CompareAndSwap(nil, s) {
				return
			}
			continue
		}
		tail := head
		for {
			next := tail.next.Load()
			if next == nil {
				break
			}
			tail = next
		}
		if tail.next.CompareAndSwap(nil, s) {
			return
		}
	}
}

// Iterate walks the list from head to tail, calling fn for each session.
// fn must not block and must not call InsertAtTail or UnlinkAndFree
// reentrantly; those mutate pointers that Iterate is concurrently reading.
func (r *Registry) Iterate(fn func(*Session)) {
	for n := r.head.Load(); n != nil; n = n.next.Load() {
		fn(n)
	}
}

// MarkAllUnseen clears the seenThisScan flag on every session, ahead of a
// fresh discovery enumeration pass.
func (r *Registry) MarkAllUnseen() {
	r.Iterate(func(s *Session) { s.MarkUnseen() })
}

// UnlinkAndFree removes target from the list and waits for the dispatch
// worker's free handshake before returning, so the caller can safely drop
// its last reference to target once this returns. Only the discovery
// worker calls this.
func (r *Registry) UnlinkAndFree(target *Session) bool {
	var prev *Session
	for n := r.head.Load(); n != nil; n = n.next.Load() {
		if n == target {
			next := n.next.Load()
			if prev == nil {
				if !r.head.CompareAndSwap(target, next) {
					return false
				}
			} else {
				prev.next.Store(next)
			}
			// Wait for two full generation advances: the first may belong
			// to a pass already in flight when we unlinked target, so it
			// is not proof of anything by itself. The second can only
			// belong to a pass that began after the first one finished,
			// which is after our unlink above became visible to every
			// goroutine, so by the time it too finishes no goroutine can
			// be holding target via a stale next pointer.
			start := r.generation.Load()
			for r.generation.Load() < start+2 {
				if r.terminated.Load() {
					break
				}
				time.Sleep(constants.FreeHandshakeSpin)
			}
			return true
		}
		prev = n
	}
	return false
}

// BeginPass is called by the dispatch worker at the start of every pass,
// advancing the generation counter the free handshake waits on.
func (r *Registry) BeginPass() {
	r.generation.Add(1)
}

// ForceUnblock releases every goroutine currently spinning (or about to
// spin) inside UnlinkAndFree's free handshake, per spec.md §5's "shutdown
// explicitly raises new-iteration to unblock this spin." Callers must
// invoke this once at shutdown, alongside cancelling the dispatch
// worker's context: once the dispatch worker stops calling BeginPass for
// good, nothing else can ever satisfy a spin waiting on the generation
// counter to advance.
func (r *Registry) ForceUnblock() {
	r.terminated.Store(true)
}

// Len returns the number of sessions currently linked. O(n); intended for
// stats and tests, not the hot path.
func (r *Registry) Len() int {
	n := 0
	r.Iterate(func(*Session) { n++ })
	return n
}
