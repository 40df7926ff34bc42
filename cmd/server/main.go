package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"manifesthub/internal/config"
	"manifesthub/internal/database"
	"manifesthub/internal/server"
	"manifesthub/internal/services"
)

func main() {
	// Load environment variables
	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if level, err := log.ParseLevel(config.Current.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Init DB
	if err := database.Connect(config.Current.DatabaseURL); err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	if err := database.AutoMigrateAndSeed(); err != nil {
		log.Fatalf("migration/seed failed: %v", err)
	}

	hub := services.NewHub()
	app := server.New(hub)

	// Prebuilt UI, if present
	app.Static("/", config.Current.StaticDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	services.StartChangeNotifier(ctx, hub, config.Current.PollInterval)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		_ = app.Shutdown()
	}()

	log.Infof("Server listening on :%s", config.Current.Port)
	if err := app.Listen(":" + config.Current.Port); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
