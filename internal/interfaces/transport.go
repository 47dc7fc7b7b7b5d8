// Package interfaces provides internal interface definitions for rawhidhub.
// These are separate from the public interfaces to avoid circular imports
// between the root package and internal packages.
package interfaces

import "time"

// DeviceInfo describes one enumerated raw-HID endpoint, independent of
// whatever concrete HID library produced it.
type DeviceInfo struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	UsagePage    uint16
	Usage        uint16
	SerialNumber string
}

// Endpoint is one open raw-HID connection to a piece of firmware. A
// session in the registry holds exactly one Endpoint for its lifetime.
//
// Read must return an error once the underlying device has gone away.
// The dispatch worker treats a read error like an empty read and stops
// draining that session for the pass; retiring the session is left to the
// discovery worker's next enumeration.
type Endpoint interface {
	// Read fills p (len(p) == constants.ReportSize) with the next
	// available report's payload and returns the byte count, or an error
	// if the endpoint is gone. Any report-ID byte the underlying
	// transport carries on the wire is stripped before this call returns;
	// callers only ever see the 32-byte protocol payload. A deadline of
	// zero requests a non-blocking poll that returns (0, nil) promptly if
	// nothing is queued; the HID transport bounds that wait at 1ms rather
	// than returning at once.
	Read(p []byte, deadline time.Duration) (n int, err error)

	// Write sends a single fixed-size report payload. The report-ID
	// prefix the wire format requires is the transport's concern, not the
	// caller's.
	Write(p []byte) (n int, err error)

	// Close releases the underlying handle. Safe to call more than once.
	Close() error

	// Info returns the DeviceInfo this endpoint was opened from.
	Info() DeviceInfo
}

// Transport enumerates and opens raw-HID endpoints. The hub depends only
// on this interface, never on a concrete HID library, so the dispatch and
// discovery workers can run unmodified against a simulated transport in
// tests.
type Transport interface {
	// Enumerate lists every currently attached device matching the
	// transport's own vendor/product filter, if it has one. Usage page and
	// usage are not filtered here; the discovery worker does that.
	Enumerate() ([]DeviceInfo, error)

	// Open opens the endpoint described by info.
	Open(info DeviceInfo) (Endpoint, error)
}

// Logger is the minimal logging surface internal packages depend on, kept
// narrow so tests can swap in the discard logger without pulling in the
// logging package's Config machinery.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer receives counters from the dispatch worker's protocol engine
// and outgoing queues.
// Implementations must be safe for concurrent use: every method may be
// called from the dispatch hot path.
type Observer interface {
	ObserveRegistered(id int)
	ObserveUnregistered(id int)
	ObserveForwarded(fromID, toID int, bytes int)
	ObserveBroadcast(id int)
	ObserveDropped(reason string)
	ObserveQueueDepth(id int, depth int)
}

// NoOpObserver discards every observation. It is the default Observer so
// callers never need a nil check on the hot path.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRegistered(int)           {}
func (NoOpObserver) ObserveUnregistered(int)         {}
func (NoOpObserver) ObserveForwarded(int, int, int)  {}
func (NoOpObserver) ObserveBroadcast(int)            {}
func (NoOpObserver) ObserveDropped(string)           {}
func (NoOpObserver) ObserveQueueDepth(int, int)      {}
