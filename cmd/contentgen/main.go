package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// execute runs one command and releases the app it opened, also when the
// command fails or is interrupted. cobra skips post-run hooks on error.
func execute(ctx context.Context, args []string) error {
	defer closeApp()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
