package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	recoverer "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/timevault/timevault/timevault"
	"github.com/timevault/timevault/timevault/database"
	"github.com/timevault/timevault/timevault/database/repositories"
	"github.com/timevault/timevault/timevault/logger"
	"github.com/timevault/timevault/timevault/services"
	"github.com/timevault/timevault/timevault/vault/claim"
	"github.com/timevault/timevault/timevault/vault/redemption"
	"github.com/timevault/timevault/timevault/web/handlers"
	"github.com/timevault/timevault/timevault/web/middleware"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler("TimeVault")))

	slog.Info("Starting TimeVault",
		slog.String("version", version),
		slog.String("commit", commit))

	initSchema := flag.Bool("init-schema", false, "Create tables and indexes on startup")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := timevault.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(-1)
	}
	defer db.Close()
	slog.Info("Database connected", slog.Duration("took", time.Since(dbStart)))

	if *initSchema {
		if err := db.InitializeSchema(ctx); err != nil {
			slog.Error("Failed to initialize schema", slog.Any("error", err))
			os.Exit(-1)
		}
		slog.Info("Schema initialized")
	}

	cards := repositories.NewCardRepository(db.BunDB())
	accounts := repositories.NewAccountRepository(db.BunDB())
	activity := repositories.NewActivityRepository(db.BunDB())
	redemptions := repositories.NewRedemptionRepository(db.BunDB())
	ledger := repositories.NewLedgerRepository(db.BunDB())
	batches := repositories.NewBatchRepository(db.BunDB())
	tickets := repositories.NewTicketRepository(db.BunDB())

	var images handlers.ImageURLResolver
	var checker services.ImageChecker
	if cfg.Spaces.Bucket != "" {
		imageService, err := services.NewImageService(
			cfg.Spaces.Key, cfg.Spaces.Secret, cfg.Spaces.Region, cfg.Spaces.Bucket, cfg.Spaces.CardRoot)
		if err != nil {
			slog.Error("Failed to initialize image service", slog.Any("error", err))
			os.Exit(-1)
		}
		images = imageService
		checker = imageService
	} else {
		slog.Warn("Spaces bucket not configured, image URLs disabled")
	}

	handler := handlers.New(handlers.Config{
		Cards:       cards,
		Accounts:    accounts,
		Activity:    activity,
		Redemptions: redemptions,
		Ledger:      ledger,
		Batches:     batches,
		Tickets:     tickets,
		Claims:      claim.NewService(cards, accounts),
		Receipts:    redemption.NewService(cards, accounts, redemptions),
		Search:      services.NewSearchService(cards),
		Importer:    services.NewBatchImportService(cards, batches, checker),
		Images:      images,
		DB:          db,
	})

	app := fiber.New(fiber.Config{
		AppName:      "TimeVault",
		ErrorHandler: middleware.CustomErrorHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recoverer.New())
	app.Use(cors.New())
	app.Use(compress.New())
	app.Use(middleware.LoggingMiddleware())
	app.Use(middleware.SecurityHeaders())
	handler.RegisterRoutes(app)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	go func() {
		if err := app.Listen(addr); err != nil {
			slog.Error("Server stopped", slog.Any("error", err))
			os.Exit(-1)
		}
	}()
	logger.LogSystem("TimeVault listening", slog.String("addr", addr))

	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-s

	slog.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("Shutdown error", slog.Any("error", err))
	}
}
