package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/range0420/PySafeScan/cmd"
	"github.com/range0420/PySafeScan/internal/observability"
)

// osExit is swappable so tests can observe the exit code.
var osExit = os.Exit

func main() {
	// Interrupt signals cancel the context so in-flight scans stop at the
	// next file boundary.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			osExit(0)
		}
		osExit(1)
	}
}
