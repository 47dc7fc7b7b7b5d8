// Command rawhidhub runs the raw-HID message hub described in spec.md:
// it discovers every attached raw-HID endpoint, assigns each an 8-bit
// identifier, and forwards reports between registered peers until
// terminated. Structured directly on the teacher's cmd/ublk-mem/main.go
// (flag parsing, logger setup, signal-triggered shutdown).
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ptrow/rawhidhub"
	"github.com/ptrow/rawhidhub/internal/logging"
	"github.com/ptrow/rawhidhub/transport"
)

// stopTimeout bounds how long StopAndWait will wait for both workers to
// exit their final pass before giving up.
const stopTimeout = 5 * time.Second

func main() {
	verbosity := parseVerbosityFlag(os.Args[1:])

	logConfig := logging.DefaultConfig()
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	hidTransport := &transport.HID{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub, err := rawhidhub.Serve(ctx, rawhidhub.Params{
		Transport: hidTransport,
		Verbosity: verbosity,
	}, &rawhidhub.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to start hub", "error", err.Error())
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", "signal", sig.String())
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := rawhidhub.StopAndWait(stopCtx, hub); err != nil {
		logger.Error("error stopping hub", "error", err.Error())
		os.Exit(1)
	}

	if sigNum, ok := sig.(syscall.Signal); ok {
		os.Exit(int(sigNum))
	}
	os.Exit(0)
}

// parseVerbosityFlag scans raw args for "-vN" / "-v N" / "-v=N", since
// spec.md §6's concatenated-digit bitmask syntax isn't representable by
// stdlib flag (which only parses "-name value" / "-name=value"). Missing
// or malformed ⇒ silent, per spec.md §6.
func parseVerbosityFlag(args []string) logging.Verbosity {
	for i, a := range args {
		if !strings.HasPrefix(a, "-v") {
			continue
		}
		rest := strings.TrimPrefix(a, "-v")
		rest = strings.TrimPrefix(rest, "=")
		if rest != "" {
			return logging.ParseVerbosity(rest)
		}
		if i+1 < len(args) {
			return logging.ParseVerbosity(args[i+1])
		}
		return 0
	}
	return 0
}

