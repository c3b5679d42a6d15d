package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/orbitlabs/orbit-api/internal/client"
	"github.com/orbitlabs/orbit-api/internal/config"
	"github.com/orbitlabs/orbit-api/internal/database"
	"github.com/orbitlabs/orbit-api/internal/handler"
	"github.com/orbitlabs/orbit-api/internal/middleware"
	"github.com/orbitlabs/orbit-api/internal/repository"
	"github.com/orbitlabs/orbit-api/internal/service"
	ws "github.com/orbitlabs/orbit-api/internal/websocket"
	"github.com/orbitlabs/orbit-api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Connect to Postgres and ensure the schema exists
	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(pool)
	imageRepo := repository.NewImageRepository(pool)

	// Initialize external clients
	geminiClient := client.NewGeminiClient(&cfg.Gemini)
	if !geminiClient.IsConfigured() && !cfg.Workflow.MockMode {
		log.Println("Warning: Gemini API key not configured, analysis will fail")
	}
	emailClient := client.NewEmailClient(&cfg.Email)
	if !emailClient.IsConfigured() {
		log.Println("Warning: email function not configured, completion emails disabled")
	}

	// Initialize object storage (required for processing)
	var storageClient *client.S3Client
	var storage client.StorageClient
	storageClient, err = client.NewS3Client(&cfg.Storage)
	if err != nil {
		log.Printf("Warning: storage client not initialized: %v", err)
	} else {
		storage = storageClient
	}

	// Initialize WebSocket hub
	hub := ws.NewHub()

	// Initialize services
	discoveryService := service.NewDiscoveryService(orderRepo,
		cfg.Workflow.DiscoveryBatchSize, cfg.Workflow.StuckTimeoutMinutes)
	healthService := service.NewHealthService(pool, redisClient,
		storageClient, geminiClient, emailClient, cfg.Workflow.MockMode)
	processService := service.NewProcessService(cfg, orderRepo, imageRepo,
		storage, geminiClient, discoveryService, healthService, asynqClient, hub)

	// Initialize handlers
	processHandler := handler.NewProcessHandler(processService)
	healthHandler := handler.NewHealthHandler(healthService)
	wsHandler := handler.NewWSHandler(hub)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,x-source-function",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", healthHandler.HandleHealth)

	// Internal routes: system-to-system only
	internal := app.Group("/internal", middleware.SystemAuth(&cfg.Auth))
	orders := internal.Group("/orders")
	orders.Post("/process",
		middleware.ProcessRateLimit(redisClient, cfg.RateLimit.ProcessPerMin),
		processHandler.HandleProcess)
	orders.Get("/pending", processHandler.HandleDiscovery)
	orders.Get("/:orderId/status", processHandler.HandleStatus)

	// WebSocket routes
	app.Use("/ws", wsHandler.Upgrade)
	app.Get("/ws/orders/:orderId", wsHandler.HandleOrderSocket())

	// Start Asynq worker server and the sweep scheduler
	go startWorkerServer(cfg, orderRepo, emailClient)
	go startScheduler(cfg)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, orderRepo *repository.OrderRepository, emailClient *client.EmailClient) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency:    5,
			RetryDelayFunc: worker.RetryDelay,
			LogLevel:       asynqLogLevel,
		},
	)

	notifyWorker := worker.NewNotifyWorker(emailClient, orderRepo)
	sweepWorker := worker.NewSweepWorker(orderRepo,
		time.Duration(cfg.Workflow.StuckTimeoutMinutes)*time.Minute)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TypeCompletionNotify, notifyWorker.HandleCompletionNotify)
	mux.HandleFunc(worker.TypeStuckSweep, sweepWorker.HandleStuckSweep)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func startScheduler(cfg *config.Config) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		&asynq.SchedulerOpts{Location: time.UTC},
	)

	if _, err := scheduler.Register("*/10 * * * *", worker.NewStuckSweepTask()); err != nil {
		log.Printf("Failed to register sweep schedule: %v", err)
		return
	}
	if err := scheduler.Run(); err != nil {
		log.Printf("Scheduler error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
