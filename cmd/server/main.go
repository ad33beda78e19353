package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/phuslu/log"

	"github.com/mmamdouhshahin/EGYstock/internal/config"
	"github.com/mmamdouhshahin/EGYstock/internal/handlers"
	"github.com/mmamdouhshahin/EGYstock/internal/services"
	"github.com/mmamdouhshahin/EGYstock/pkg/gemini"
)

func main() {
	// Load configuration; the provider credential is the one hard
	// requirement, everything else degrades.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	log.DefaultLogger = log.Logger{
		Level:      log.ParseLevel(cfg.LogLevel),
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			ColorOutput:    cfg.Environment != "production",
			EndWithMessage: true,
		},
	}

	ctx := context.Background()

	// Watchlist store is optional: without it the service runs with the
	// watchlist in degraded mode.
	var store services.Store
	var firestoreStore *services.FirestoreStore
	if cfg.FirestoreProject == "" {
		log.Warn().Msg("FIRESTORE_PROJECT_ID not set, watchlist disabled")
	} else {
		firestoreStore, err = services.NewFirestoreStore(ctx, cfg.FirestoreProject)
		if err != nil {
			log.Warn().Err(err).Msg("firestore unavailable, watchlist disabled")
		} else {
			store = firestoreStore
		}
	}

	watchlistService := services.NewWatchlistService(store)
	if watchlistService.Configured() {
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := watchlistService.Load(loadCtx); err != nil {
			log.Warn().Err(err).Msg("initial watchlist load failed, starting with empty mirror")
		}
		cancel()
	}

	provider := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	screenerService := services.NewScreenerService(provider, watchlistService)

	screenerHandler := handlers.NewScreenerHandler(screenerService, cfg.DefaultIndex, cfg.FetchTimeout)
	watchlistHandler := handlers.NewWatchlistHandler(watchlistService)
	healthHandler := handlers.NewHealthHandler(watchlistService)

	app := fiber.New(fiber.Config{
		StrictRouting: true,
		CaseSensitive: true,
		ServerHeader:  "EGYstock-API",
		AppName:       "EGYstock v1.0",
		ReadTimeout:   time.Second * 10,
		WriteTimeout:  cfg.FetchTimeout + 10*time.Second,
		BodyLimit:     1 * 1024 * 1024, // 1MB
		ErrorHandler:  handlers.CustomErrorHandler,
	})

	// Middleware stack
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		},
	}))

	// Routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "EGYstock API",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	app.Get("/health", healthHandler.Health)
	app.Get("/health/ready", healthHandler.Ready)

	// API v1 routes
	v1 := app.Group("/v1")
	v1.Post("/screen/refresh", screenerHandler.Refresh)
	v1.Post("/screen/view", screenerHandler.View)
	v1.Post("/screen/sort", screenerHandler.Sort)
	v1.Get("/watchlist", watchlistHandler.List)
	v1.Post("/watchlist/toggle", watchlistHandler.Toggle)

	// Start server
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("environment", cfg.Environment).
		Str("default_index", cfg.DefaultIndex).
		Bool("watchlist", watchlistService.Configured()).
		Msg("EGYstock API started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if firestoreStore != nil {
		if err := firestoreStore.Close(); err != nil {
			log.Error().Err(err).Msg("closing firestore client")
		}
	}

	log.Info().Msg("server shutdown complete")
}
