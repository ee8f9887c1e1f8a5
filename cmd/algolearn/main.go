// Package main provides the algolearn binary, a command-line client for the
// AlgoLearn session. Each invocation restores the stored session, runs one
// command and exits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	goSession "github.com/MrEthical07/goSession"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "algolearn"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", goSession.ErrorMessage(err))
		os.Exit(1)
	}
}
