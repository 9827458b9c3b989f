package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/di"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/interfaces/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (*cli.Runtime, func(), error) {
		container, cleanup, err := di.InitializeContainer(ctx)
		if err != nil {
			return nil, nil, err
		}
		return &cli.Runtime{
			Service:     container.SyncService,
			Concurrency: container.Config.Sync.Concurrency,
			Logger:      container.Logger,
		}, cleanup, nil
	})

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
