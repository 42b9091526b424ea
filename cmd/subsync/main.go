package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bashhack/subsync/internal/config"
)

// Version information - injected at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := NewDefaultApp(config.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go relayFirstSignal(c, signal.Stop, app.Stderr, cancel)

	err := app.Command().ExecuteContext(ctx)
	if closeErr := app.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		app.ReportError(err)
		cancel()
		app.exit(1)
	}
}

// relayFirstSignal cancels the run on the first signal, then restores the
// default handlers so a second signal terminates the process.
//
// Cancelling interrupts the running git child and unwinds the pipeline,
// which releases the scratch clone and the lock.
func relayFirstSignal(c chan os.Signal, stop func(chan<- os.Signal), stderr io.Writer, cancel context.CancelFunc) {
	sig := <-c
	stop(c)
	_, _ = fmt.Fprintf(stderr, "\nReceived signal %v, stopping subsync (signal again to force)...\n", sig)
	cancel()
}
