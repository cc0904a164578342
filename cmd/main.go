package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/dataimport-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	a.Log.Info("Data import worker starting", "ops_addr", a.Cfg.OpsAddr)
	if err := a.Run(ctx); err != nil {
		a.Log.Error("Worker exited", "error", err)
		a.Close(context.Background())
		os.Exit(1)
	}
	a.Log.Info("Data import worker stopped")
}
