package rawhidhub

import "github.com/ptrow/rawhidhub/internal/constants"

// Re-exported so callers embedding a Hub don't need to import the
// internal constants package directly.
const (
	NUniqueDeviceIDs     = constants.NUniqueDeviceIDs
	MaxRegisteredDevices = constants.MaxRegisteredDevices
	HubID                = constants.HubID
	Unassigned           = constants.Unassigned
	ReportSize           = constants.ReportSize
)

// StatsIntervalSeconds is constants.StatsInterval expressed in seconds,
// for the iteration-rate computation in StatsPrinter.
const StatsIntervalSeconds = float64(constants.StatsInterval) / float64(1_000_000_000)
