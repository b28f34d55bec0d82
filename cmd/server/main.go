/*
main.go - Application entry point

PURPOSE:
  Wires the vacation lifecycle engine together and runs it: configuration,
  SQLite store with its change feed, the feed consumer (lifecycle reactor),
  the outbound Slack client, and the HTTP surface with graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (VACATION_* env vars, optional vacation.yaml)
  2. Register metrics, build the structured logger
  3. Open the SQLite backend wired to the change feed
  4. Start the feed consumer driving the lifecycle reactor
  5. Start the HTTP server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections (30s drain)
  2. Stop the feed consumer
  3. Close the database connection
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/vacation-engine/api"
	"github.com/warp/vacation-engine/config"
	"github.com/warp/vacation-engine/holiday"
	"github.com/warp/vacation-engine/obs"
	"github.com/warp/vacation-engine/slack"
	"github.com/warp/vacation-engine/store/sqlite"
	"github.com/warp/vacation-engine/tenant"
	"github.com/warp/vacation-engine/vacation"
	"github.com/warp/vacation-engine/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	obs.Init()
	logger := obs.NewLogger("vacation-engine")

	// Storage + change feed
	feed := tenant.NewFeed(cfg.FeedBuffer)
	backend, err := sqlite.New(cfg.DBPath, feed)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer backend.Close()
	store := tenant.NewStore(backend, logger)
	directory := workspace.NewDirectory(store)

	// Outbound boundary
	client := slack.NewClient(directory, logger)
	client.BaseURL = cfg.SlackBaseURL

	// Failure reporting to the operations channel
	report := func(ctx context.Context, stage string, cause error) {
		if cfg.OpsWorkspaceID == "" || cfg.OpsChannelID == "" {
			return
		}
		text := fmt.Sprintf("Handler: %s.\nError: %v", stage, cause)
		if err := client.SendMessage(ctx, cfg.OpsWorkspaceID, cfg.OpsChannelID, text); err != nil {
			logger.Error("failure report not delivered", "stage", stage, "error", err)
		}
	}

	service := &vacation.Service{
		Store:     store,
		Directory: directory,
		Messenger: client,
		Channels:  client,
		Calendar:  holiday.Ukraine{},
		Log:       logger,
	}
	reactor := &vacation.Reactor{
		Store:     store,
		Directory: directory,
		Messenger: client,
		Users:     client,
		Log:       logger,
		Report:    report,
	}

	// Feed consumer: the sole driver of lifecycle side effects.
	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	go feed.Run(feedCtx, reactor.HandleBatch)

	handler := &api.Handler{
		Service:   service,
		Directory: directory,
		Log:       logger,
		Report:    report,
	}

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	stopFeed()

	logger.Info("server stopped")
}
