package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rcfeed/db"
	"rcfeed/enrich"
	"rcfeed/formats"
	"rcfeed/pipeline"
	"rcfeed/server"
	"rcfeed/utils"
)

func main() {
	cfg, err := utils.Load(os.Getenv("RCFEED_CONFIG"))
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	dbPath, err := cfg.Database.ResolvedPath()
	if err != nil {
		log.Fatal("Failed to resolve database path:", err)
	}
	if dbPath != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			log.Fatal("Failed to create database directory:", err)
		}
	}
	store, err := db.Open(cfg.Database.Driver, dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer store.Close()

	parser := formats.NewParser("wikiarc")
	formats.Register(parser)

	opts := pipeline.Options{
		Properties:    cfg.Enrich.Properties,
		Attempts:      cfg.Enrich.Attempts,
		MaxConcurrent: cfg.Dispatch.MaxConcurrent,
	}
	if cfg.Enrich.URL != "" {
		opts.Client = enrich.NewHTTPClient(cfg.Enrich.URL, cfg.Enrich.Timeout)
		log.Printf("Enrichment enabled via %s", cfg.Enrich.URL)
	}
	dispatcher := pipeline.NewDispatcher(parser, store, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Dispatches outlive the signal so in-flight messages still get stored.
	srv := server.NewServer(context.Background(), cfg.API.Port, store, dispatcher)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	dispatcher.Wait()
}
