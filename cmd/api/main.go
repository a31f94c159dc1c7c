package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/canopy-network/chanalytics/app/api"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := api.Initialize(ctx)

	if err := api.NewServer(app); err != nil {
		app.Logger.Fatal("Unable to build server", zap.Error(err))
	}

	app.Start(ctx)
}
