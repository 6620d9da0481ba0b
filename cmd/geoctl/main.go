package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lcalzada-xor/geoloc/internal/telemetry"
)

// version is shown by --version.
var version = telemetry.Version

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
