package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"segmentbook-service/internal/client/cli"
)

func main() {
	// A missing .env is normal; the environment is used as-is.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		cli.Report(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
