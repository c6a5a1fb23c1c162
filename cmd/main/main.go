package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bjs/parser/internal/cli"

	log "github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, os.Args[1:])
	stop()

	if err != nil {
		log.Errorf("❌ %v", err)
		os.Exit(1)
	}
}
