package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"docflow/internal/analyzers"
	"docflow/internal/config"
	"docflow/internal/daemon"
	"docflow/internal/documents"
	"docflow/internal/events"
	"docflow/internal/logging"
	"docflow/internal/pipeline"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := documents.Open(cfg)
	if err != nil {
		logger.Error("open document store", logging.Error(err))
		return
	}

	hub := events.NewHub(cfg.Events.SubscriberBuffer)
	driver := pipeline.NewDriver(cfg, store, hub, analyzers.New(cfg), logger)

	d, err := daemon.New(cfg, store, logger, driver, hub)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("docflowd shutting down")
}
