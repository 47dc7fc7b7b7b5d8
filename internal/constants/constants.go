// Package constants holds the wire-protocol and tuning constants shared by
// every internal package of the hub.
package constants

import "time"

// Identifier space. Identifier 255 does double duty as HUB and as the
// UNASSIGNED sentinel; this overload matches the wire protocol and is kept
// deliberately rather than split into two values.
const (
	// NUniqueDeviceIDs is the size of the identifier space (0..254 usable).
	NUniqueDeviceIDs = 255

	// MaxRegisteredDevices caps how many sessions may hold an identifier
	// at once.
	MaxRegisteredDevices = 30

	// HubID is both the hub's own pseudo-identifier on the wire and the
	// UNASSIGNED sentinel for sessions that have not registered.
	HubID = 255

	// Unassigned is an alias for HubID used wherever the sentinel meaning
	// (rather than the "control report" meaning) is intended.
	Unassigned = HubID

	// FirstAllocatableID is where the allocator's cursor starts. Identifier
	// 0 is reserved by convention for firmware that pre-assigns it itself;
	// the allocator never hands it out.
	FirstAllocatableID = 1
)

// Wire format (spec.md §4.F).
const (
	// ReportSize is the fixed payload size of every HID report the hub
	// exchanges with firmware, not counting the report-ID byte the
	// transport prepends on write.
	ReportSize = 32

	// HubCommandID marks byte 0 of every report the hub interprets.
	// Reports with any other leading byte pass through untouched.
	HubCommandID = 0x27

	// CmdRegister is byte 2 of an inbound control report (byte 1 == HubID)
	// requesting identifier assignment.
	CmdRegister = 0x01

	// CmdUnregister is byte 2 of an inbound control report requesting
	// release of a previously assigned identifier.
	CmdUnregister = 0x00
)

// QMK raw-HID endpoint filter (spec.md §4.H, GLOSSARY).
const (
	UsagePageRawHID = 0xFF60
	UsageRawHID     = 0x61
)

// Timing.
const (
	// StatsInterval is how often the dispatch worker prints per-pair
	// message counters.
	StatsInterval = 5000 * time.Millisecond

	// DiscoveryInterval is the pause between discovery worker scans.
	DiscoveryInterval = 1 * time.Second

	// IdleGrace is how long since the last forwarded message before the
	// dispatch worker backs off from its fast poll interval.
	IdleGrace = 150 * time.Millisecond

	// FastSleep is the dispatch worker's pause between passes while traffic
	// is active: zero, so the next pass starts immediately (sub-millisecond
	// forwarding latency).
	FastSleep = 0

	// SlowSleep is the dispatch worker's poll interval once idle longer
	// than IdleGrace, sized to cover a coarse (~4ms) OS timer tick.
	SlowSleep = 4 * time.Millisecond

	// FreeHandshakeSpin is the poll interval the discovery worker uses
	// while waiting for the dispatch worker to begin a fresh pass before
	// freeing an unlinked session (spec.md §5 "free handshake").
	FreeHandshakeSpin = 200 * time.Microsecond
)

// OutqueueWarnLen is a soft watermark past which the outgoing queue table
// logs a basic-verbosity warning. It is purely observational: spec.md's
// design notes explicitly allow unbounded queues and this repo adds no
// backpressure.
const OutqueueWarnLen = 4096
