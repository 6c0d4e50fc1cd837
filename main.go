package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pptconv/internal/errlog"
)

func main() {
	// Conversion diagnostics go to a rotating file; failure to set it up
	// is not fatal for the conversion itself.
	if err := errlog.Init(); err != nil {
		log.Printf("[Main] error log unavailable: %v", err)
	}
	defer errlog.Close()

	// Cancel in-flight conversions on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
