package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/fr0stylo/linevault/internal/adapters/sqlite"
	"github.com/fr0stylo/linevault/internal/app/services"
	"github.com/fr0stylo/linevault/internal/config"
	"github.com/fr0stylo/linevault/internal/db"
	"github.com/fr0stylo/linevault/internal/line"
	"github.com/fr0stylo/linevault/internal/observability"
	"github.com/fr0stylo/linevault/internal/server"
	"github.com/fr0stylo/linevault/internal/server/routes"
	"github.com/fr0stylo/linevault/internal/storage"
	"github.com/fr0stylo/linevault/internal/webhooks"
)

func main() {
	log := slog.New(observability.WrapSlogHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.IsLocalDevelopment() && cfg.Line.ChannelAccessToken == "" {
		slog.Warn("LINE_CHANNEL_ACCESS_TOKEN not set, media fetches will be rejected upstream")
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	blobs, err := storage.New(storage.Config{
		Type:     cfg.Storage.Type,
		LocalDir: cfg.Storage.LocalDir,
		SharePoint: storage.SharePointConfig{
			TenantID:     cfg.Storage.SharePoint.TenantID,
			ClientID:     cfg.Storage.SharePoint.ClientID,
			ClientSecret: cfg.Storage.SharePoint.ClientSecret,
			DriveID:      cfg.Storage.SharePoint.DriveID,
			Folder:       cfg.Storage.SharePoint.Folder,
		},
	})
	if err != nil {
		slog.Error("Failed to configure storage backend", "error", err)
		os.Exit(1)
	}

	fetcher := line.NewContentClient(cfg.Line.ContentAPIBaseURL, cfg.Line.ChannelAccessToken)
	ingest := services.NewWebhookIngestService(cfg.Line.ChannelSecret, fetcher, blobs, sqlite.NewEventStore(database), log)

	srv := server.New(log)
	srv.RegisterRouter(routes.NewWebhookRoutes(webhooks.NewHandler(ingest, log)))
	srv.RegisterRouter(routes.NewHealthRoutes())

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Starting server", "port", cfg.Server.Port, "storage", cfg.Storage.Type)
	slog.Error("Closing server", "error", srv.Start(addr))
}
