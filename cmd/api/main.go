package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/api/handlers"
	"github.com/nl2api/backend/internal/cache/redis"
	"github.com/nl2api/backend/internal/classifier"
	"github.com/nl2api/backend/internal/executor"
	"github.com/nl2api/backend/internal/llm"
	"github.com/nl2api/backend/internal/metrics"
	"github.com/nl2api/backend/internal/middleware/ratelimit"
	"github.com/nl2api/backend/internal/middleware/security"
	"github.com/nl2api/backend/internal/middleware/validation"
	"github.com/nl2api/backend/internal/pipeline"
	"github.com/nl2api/backend/internal/retriever"
	"github.com/nl2api/backend/internal/storage/sqlite"
	"github.com/nl2api/backend/internal/synthesizer"
	"github.com/nl2api/backend/internal/vector/milvus"
	"github.com/nl2api/backend/pkg/config"
	appLogger "github.com/nl2api/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting NL2API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Vector.Endpoint,
		cfg.Vector.CollectionName,
		cfg.Vector.Dim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.EnsureCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
	}

	llmClient := llm.NewClient(
		cfg.LLM.OpenAIAPIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	// Nil interfaces keep the optional cache paths disabled when Redis is off.
	var embeddingCache retriever.EmbeddingCache
	var resultCache pipeline.ResultCache
	if redisClient != nil {
		embeddingCache = redisClient
		resultCache = redisClient
	}

	askPipeline := pipeline.New(
		classifier.New(llmClient),
		retriever.New(llmClient, llmClient, milvusClient, embeddingCache, cfg.Vector.TopK),
		synthesizer.New(llmClient),
		sqliteClient,
		resultCache,
	)

	upstreamExecutor := executor.New(
		cfg.Upstream.GraphQLURL,
		cfg.Upstream.RESTBaseURL,
		time.Duration(cfg.Upstream.TimeoutSec)*time.Second,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	rateLimiter := ratelimit.New(ratelimit.Config{
		Logger: appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(rateLimiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	askHandler := handlers.NewAskHandler(askPipeline, sqliteClient)
	feedbackHandler := handlers.NewFeedbackHandler(sqliteClient)
	executeHandler := handlers.NewExecuteHandler(upstreamExecutor, sqliteClient)

	api := app.Group("/api/v1")

	api.Post("/ask", askHandler.HandleAsk)
	api.Get("/ask/history", askHandler.GetAskHistory)
	api.Get("/ask/:id/sources", askHandler.GetAskSources)

	api.Post("/feedback", feedbackHandler.HandleFeedback)
	api.Post("/execute", executeHandler.HandleExecute)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
