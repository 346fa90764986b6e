package shared

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"meep/fpgarelay/pkg/log"
)

// ShutdownGrace is how long the process may take to wind down after the
// first signal before it exits anyway.
const ShutdownGrace = 5 * time.Second

// SetupSignalHandling cancels ctx on the first SIGINT or SIGTERM. A second
// signal, or the grace period running out, exits the process.
func SetupSignalHandling(cancel context.CancelFunc, logger *log.Logger) {
	sigCh := make(chan os.Signal, 2)

	sigs := []os.Signal{os.Interrupt}
	if runtime.GOOS != "windows" {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
		// a client hanging up mid-write must not kill the relay
		signal.Ignore(syscall.SIGPIPE)
	}

	signal.Notify(sigCh, sigs...)

	go func() {
		s := <-sigCh
		logger.InfoMsg("Received %s, shutting down", s)
		cancel()

		select {
		case <-sigCh:
			if ss, ok := s.(syscall.Signal); ok {
				os.Exit(128 + int(ss))
			}
			os.Exit(1)
		case <-time.After(ShutdownGrace):
			logger.ErrorMsg("Shutdown took longer than %v, exiting", ShutdownGrace)
			os.Exit(1)
		}
	}()
}
