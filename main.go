package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"akta-archive/config"
	"akta-archive/database"
	"akta-archive/extraction"
	"akta-archive/handlers"
	"akta-archive/logging"
	"akta-archive/storage"
	"akta-archive/verifylink"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("archive stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	// Initialize Database
	db, err := database.Open(cfg.DBPath, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	store := storage.NewStore(db, storage.Options{
		DataDir:        cfg.DataDir,
		MaxDocuments:   cfg.MaxDocuments,
		MaxImageWidth:  cfg.MaxImageWidth,
		JPEGQuality:    cfg.JPEGQuality,
		MaxImagePixels: cfg.MaxImagePixels,
	}, log)
	if err := store.EnsureDirs(); err != nil {
		return err
	}
	log.Info("storage directories ensured", slog.String("dir", cfg.DataDir))

	links, err := verifylink.NewBuilder(cfg.PublicURL)
	if err != nil {
		return err
	}

	ai := extraction.NewClient(extraction.Config{
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
		Endpoint: cfg.GeminiEndpoint,
		Timeout:  cfg.ExtractTimeout,
	}, nil)
	if !cfg.AIEnabled() {
		log.Warn("GEMINI_API_KEY not set, AI extraction disabled")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxUploadSize),
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return ctx.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New()) // Add basic request logging

	// Setup Routes
	handlers.SetupRoutes(app, handlers.New(store, ai, links, log, cfg.MaxDocuments))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("addr", cfg.Addr))
		errc <- app.Listen(cfg.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}
