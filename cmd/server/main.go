package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/pagecraft/api/internal/auth"
	"github.com/pagecraft/api/internal/cache"
	"github.com/pagecraft/api/internal/client"
	"github.com/pagecraft/api/internal/config"
	"github.com/pagecraft/api/internal/gate"
	"github.com/pagecraft/api/internal/handler"
	"github.com/pagecraft/api/internal/middleware"
	"github.com/pagecraft/api/internal/pipeline"
	"github.com/pagecraft/api/internal/service"
	"github.com/pagecraft/api/internal/store"
	ws "github.com/pagecraft/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection; fall back to in-memory persistence for dev
	ctx := context.Background()
	var jobStore store.Store
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, using in-memory store: %v", err)
		jobStore = store.NewMemoryStore()
	} else {
		jobStore = store.NewRedisStore(redisClient)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize text-generation clients: Groq primary, OpenAI fallback
	groqClient := client.NewGroqClient(&cfg.Groq)
	openaiClient := client.NewOpenAIClient(&cfg.OpenAI)
	provider := client.NewProviderAdapter(groqClient, openaiClient)

	evaluatorClient := client.NewEvaluatorClient(&cfg.Evaluator)

	// Initialize object storage (optional - continues if not configured)
	var storageClient client.StorageClient
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		s3Client, err := client.NewS3Client(&cfg.Storage)
		if err != nil {
			log.Printf("Warning: storage client not initialized: %v", err)
		} else {
			storageClient = s3Client
		}
	} else {
		log.Println("Info: object storage not configured, artifacts stay in the store")
	}

	// Initialize OIDC JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.OIDC.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Cross-document claim cache feeding the consistency penalty
	claimCache := cache.New(24*time.Hour, 4096)
	qualityGate := gate.New(evaluatorClient, claimCache, cfg.Pipeline)

	// Initialize the pipeline and services
	orchestrator := pipeline.NewOrchestrator(jobStore, provider, qualityGate, storageClient, hub, cfg.Pipeline, uuid.NewString)
	generationService := service.NewGenerationService(jobStore, orchestrator, asynqClient)

	// Initialize handlers
	generationHandler := handler.NewGenerationHandler(generationService, validate)

	// Initialize middleware (with fallback support)
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		// Direct mode: auth is handled by the backend itself
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    5 * 1024 * 1024, // 5MB, briefs are small
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"groq":      groqClient.IsConfigured(),
				"openai":    openaiClient.IsConfigured(),
				"evaluator": evaluatorClient.IsConfigured(),
				"storage":   storageClient != nil,
				"auth":      jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Generation routes
	generation := api.Group("/generation")
	generation.Post("/start", rateLimiter.StartLimit(cfg.RateLimit.StartPerHour), generationHandler.Start)
	generation.Get("/status/:jobId", rateLimiter.StatusLimit(cfg.RateLimit.StatusPerMin), generationHandler.Status)
	generation.Get("/progress/:jobId", rateLimiter.StatusLimit(cfg.RateLimit.StatusPerMin), generationHandler.Progress)
	generation.Get("/result/:jobId", generationHandler.Result)
	generation.Post("/cancel/:jobId", generationHandler.Cancel)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, orchestrator)

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

func startWorkerServer(cfg *config.Config, orchestrator *pipeline.Orchestrator) {
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
			// each task fans out over section batches internally
			Concurrency: 4,
			Queues: map[string]int{
				"generation": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	generationWorker := pipeline.NewWorker(orchestrator)

	mux := asynq.NewServeMux()
	mux.HandleFunc(pipeline.TaskTypeGeneration, generationWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
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
