// Package transport adapts concrete I/O backends to the hub's
// interfaces.Transport/interfaces.Endpoint seam, mirroring the teacher's
// own indirection between its Backend interface and a real storage
// implementation (backend/mem.go vs. a block device).
package transport

import (
	"fmt"
	"time"

	"github.com/karalabe/hid"

	"github.com/ptrow/rawhidhub/internal/constants"
	"github.com/ptrow/rawhidhub/internal/interfaces"
)

// HID is the production interfaces.Transport, backed by
// github.com/karalabe/hid. It enumerates every attached USB HID device
// and lets the discovery worker filter for the raw-HID usage page/usage;
// filtering here (rather than in the library call) keeps the facade
// honest about karalabe/hid's own vendor/product-only Enumerate filter.
type HID struct {
	// VendorID and ProductID narrow karalabe/hid.Enumerate, if nonzero.
	// Zero values (the default) enumerate every HID device; discovery's
	// usage-page/usage filter then narrows to raw-HID endpoints.
	VendorID  uint16
	ProductID uint16
}

// Enumerate implements interfaces.Transport.
func (t *HID) Enumerate() ([]interfaces.DeviceInfo, error) {
	infos, err := hid.Enumerate(t.VendorID, t.ProductID)
	if err != nil {
		return nil, fmt.Errorf("hid enumerate: %w", err)
	}
	out := make([]interfaces.DeviceInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, interfaces.DeviceInfo{
			Path:         info.Path,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			UsagePage:    info.UsagePage,
			Usage:        info.Usage,
			SerialNumber: info.Serial,
		})
	}
	return out, nil
}

// Open implements interfaces.Transport. It re-resolves info.Path through
// a fresh enumeration since karalabe/hid.DeviceInfo (not our own
// interfaces.DeviceInfo) is what carries the Open method.
func (t *HID) Open(info interfaces.DeviceInfo) (interfaces.Endpoint, error) {
	infos, err := hid.Enumerate(t.VendorID, t.ProductID)
	if err != nil {
		return nil, fmt.Errorf("hid enumerate: %w", err)
	}
	for _, candidate := range infos {
		if candidate.Path != info.Path {
			continue
		}
		dev, err := candidate.Open()
		if err != nil {
			return nil, fmt.Errorf("hid open %s: %w", info.Path, err)
		}
		return &hidEndpoint{dev: dev, info: info}, nil
	}
	return nil, fmt.Errorf("hid open %s: device no longer present", info.Path)
}

// hidEndpoint wraps a hid.Device as an interfaces.Endpoint.
type hidEndpoint struct {
	dev  hid.Device
	info interfaces.DeviceInfo
}

// minPollTimeoutMs is the smallest positive millisecond timeout passed to
// ReadTimeout for a "non-blocking" read (deadline <= 0).
//
// karalabe/hid's own Device interface doc comment
// (_examples/karalabe-hid/hid.go) claims "a timeout of 0 means blocking",
// but its only real implementation, hidDevice.ReadTimeout
// (_examples/karalabe-hid/hid_enabled.go), defines Read itself as
// ReadTimeout(b, -1) and documents -1, not 0, as the blocking sentinel —
// the two comments in the same library contradict each other. Rather
// than trust either doc comment and risk the dispatch worker's single
// goroutine blocking indefinitely on a session with nothing pending
// (spec.md §4.B/§5 require every read to be non-blocking), this facade
// never forwards a literal 0: a small positive timeout is unambiguous
// under both readings of the library's contract, since every variant
// agrees that a positive value bounds the wait rather than blocking
// forever.
const minPollTimeoutMs = 1

// Read implements interfaces.Endpoint. deadline <= 0 requests a
// non-blocking poll; see minPollTimeoutMs for why that is never forwarded
// to karalabe/hid as a literal 0.
func (e *hidEndpoint) Read(p []byte, deadline time.Duration) (int, error) {
	timeoutMs := int(deadline.Milliseconds())
	if timeoutMs <= 0 {
		timeoutMs = minPollTimeoutMs
	}
	n, err := e.dev.ReadTimeout(p, timeoutMs)
	if err != nil {
		return 0, fmt.Errorf("hid read %s: %w", e.info.Path, err)
	}
	return n, nil
}

// Write implements interfaces.Endpoint. The transport, not the caller,
// owns the leading report-ID byte the wire format requires (spec.md §6):
// karalabe/hid's Write expects it prepended, so it is added here rather
// than by the protocol engine.
func (e *hidEndpoint) Write(p []byte) (int, error) {
	buf := make([]byte, 1+constants.ReportSize)
	copy(buf[1:], p)
	n, err := e.dev.Write(buf)
	if err != nil {
		return 0, fmt.Errorf("hid write %s: %w", e.info.Path, err)
	}
	return n, nil
}

// Close implements interfaces.Endpoint.
func (e *hidEndpoint) Close() error { return e.dev.Close() }

// Info implements interfaces.Endpoint.
func (e *hidEndpoint) Info() interfaces.DeviceInfo { return e.info }
