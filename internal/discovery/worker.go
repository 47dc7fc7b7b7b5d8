// Package discovery implements the periodic scan that keeps the session
// registry in sync with which raw-HID endpoints are actually attached. It
// is the only writer of new sessions into the registry and the only
// initiator of session retirement; the dispatch worker only ever
// acknowledges a retirement it already requested.
package discovery

import (
	"context"

	"github.com/ptrow/rawhidhub/internal/clock"
	"github.com/ptrow/rawhidhub/internal/constants"
	"github.com/ptrow/rawhidhub/internal/interfaces"
	"github.com/ptrow/rawhidhub/internal/registry"
)

// Config wires a Worker to its collaborators.
type Config struct {
	Transport interfaces.Transport
	Registry  *registry.Registry
	Clock     clock.Clock
	Logger    interfaces.Logger
}

// Worker runs the periodic enumeration loop.
type Worker struct {
	cfg Config
}

// New returns a Worker ready to Run.
func New(cfg Config) *Worker {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Worker{cfg: cfg}
}

// Run scans every DiscoveryInterval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		w.scan()

		select {
		case <-ctx.Done():
			return
		default:
		}

		w.cfg.Clock.Sleep(constants.DiscoveryInterval)
	}
}

func (w *Worker) scan() {
	w.cfg.Registry.MarkAllUnseen()

	infos, err := w.cfg.Transport.Enumerate()
	if err != nil {
		if w.cfg.Logger != nil {
			w.cfg.Logger.Warn("enumeration failed", "error", err.Error())
		}
		return
	}

	for _, info := range infos {
		if info.UsagePage != constants.UsagePageRawHID || info.Usage != constants.UsageRawHID {
			continue
		}
		w.handleOne(info)
	}

	w.retireUnseen()
}

func (w *Worker) handleOne(info interfaces.DeviceInfo) {
	var existing *registry.Session
	w.cfg.Registry.Iterate(func(s *registry.Session) {
		if existing != nil {
			return
		}
		if s.Path == info.Path && !s.UnregisterRequested() {
			existing = s
		}
	})
	if existing != nil {
		existing.MarkSeen()
		return
	}

	ep, err := w.cfg.Transport.Open(info)
	if err != nil {
		if w.cfg.Logger != nil {
			w.cfg.Logger.Warn("open failed", "path", info.Path, "error", err.Error())
		}
		return
	}
	s := registry.NewSession(ep, info.Path)
	s.MarkSeen()
	w.cfg.Registry.InsertAtTail(s)
	if w.cfg.Logger != nil {
		w.cfg.Logger.Info("session opened",
			"path", info.Path,
			"vendor_id", info.VendorID,
			"product_id", info.ProductID,
			"usage_page", info.UsagePage,
			"usage", info.Usage,
		)
	}
}

func (w *Worker) retireUnseen() {
	var toFree []*registry.Session
	w.cfg.Registry.Iterate(func(s *registry.Session) {
		if s.Seen() {
			return
		}
		if s.DispatchAcked() {
			toFree = append(toFree, s)
			return
		}
		s.RequestUnregister()
	})

	for _, s := range toFree {
		w.cfg.Registry.UnlinkAndFree(s)
		_ = s.Endpoint().Close()
		if w.cfg.Logger != nil {
			w.cfg.Logger.Info("session retired", "path", s.Path)
		}
	}
}
