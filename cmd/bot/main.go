package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goalbot/internal/app"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "goalbot: %v\n", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "goalbot: %v\n", err)
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		a.Stop(stopCtx)
		cancel()
		os.Exit(1)
	}

	<-ctx.Done()
	stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.Stop(stopCtx)
}
