package main

import (
	"context"
	"log"

	"coredetect/infrastructure/config"
	"coredetect/infrastructure/di"
	"coredetect/interfaces/worker"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()

	handler := worker.NewHandler(container.CommandBus, container.Logger)
	lambda.Start(handler.Handle)
}
