package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/di"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/interfaces/queue"
)

var (
	// container holds the dependency injection container
	container *di.Container

	handler *queue.SQSHandler
)

// init runs during cold start
func init() {
	coldStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The cleanup is not deferred: the container lives for the whole
	// execution environment.
	var err error
	container, _, err = di.InitializeContainer(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	handler = queue.NewSQSHandler(container.SyncService, container.Logger)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)),
		zap.String("environment", string(container.Config.Environment)),
		zap.Strings("config_sources", container.Config.LoadedFrom),
	)
}

func main() {
	lambda.Start(handler.Handle)
}
