package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"guidena-backend/internal/db"
	"guidena-backend/internal/handlers"
	"guidena-backend/internal/models"
	"guidena-backend/internal/services"
	"guidena-backend/internal/utils"
)

func Run() {
	if err := utils.LoadEnv(); err != nil {
		log.Warn().Msg(".env file not found")
	}

	initLogger()

	// Database
	connString := utils.GetEnv("DATABASE_URL", "")
	if connString == "" {
		connString = "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
			utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
			utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
			utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
			utils.GetEnv("POSTGRES_DB", "guidena") + "?sslmode=disable"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	pool, err := db.Connect(ctx, connString)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Services
	userService := services.NewUserService(pool)
	chatStore := services.NewPgConversationStore(pool)
	mentorships := services.NewPgMentorshipService(pool)
	presence := services.NewPresenceTracker(
		services.NewPgPresenceStore(pool),
		log.With().Str("component", "presence").Logger(),
	)

	// One hub per server instance; everything that needs it gets it by
	// reference.
	hub := handlers.NewHub()

	app := fiber.New()
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")

	api.Post("/auth/register", func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		user, err := userService.Register(c.Context(), req)
		if err != nil {
			if errors.Is(err, services.ErrEmailExists) {
				return c.Status(400).JSON(fiber.Map{"error": "email already registered"})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(user)
	})

	api.Post("/auth/login", func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		res, err := userService.Login(c.Context(), req)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(res)
	})

	protected := api.Group("/")
	protected.Use(handlers.AuthMiddleware)
	protected.Get("/chat/:receiverId", handlers.ChatHistoryHandler(chatStore, mentorships))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Websocket chat. Middleware order matters: upgrade check first, then
	// token validation, then the protocol handler.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.AuthMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(handlers.ChatDeps{
		Hub:      hub,
		Store:    chatStore,
		Presence: presence,
		Authz:    mentorships,
		Log:      log.With().Str("component", "chat").Logger(),
	}))

	port := utils.GetEnv("PORT", "3001")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", port).Msg("server listening")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("gracefully shutting down")
	_ = app.Shutdown()
	log.Info().Msg("server shutdown complete")
}

func initLogger() {
	level, err := zerolog.ParseLevel(utils.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if utils.GetEnv("LOG_PRETTY", "") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
