package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"personachat/internal/config"
	"personachat/internal/database"
	"personachat/internal/handlers"
	"personachat/internal/health"
	"personachat/internal/jobs"
	"personachat/internal/logging"
	"personachat/internal/middleware"
	"personachat/internal/preflight"
	"personachat/internal/services"
	"personachat/pkg/auth"
)

const dispatchMaxWait = 2 * time.Second

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting PersonaChat Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Store: %s, Quota window: %s, Fail policy: %s)",
		cfg.Port, cfg.StoreBackend, cfg.QuotaWindow, cfg.QuotaFailPolicy)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	healthService := health.NewService(2 * time.Second)

	// Redis backs the shared quota counters and the retrieval cache
	redisService, err := services.NewRedisService(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()
	healthService.Register(redisService, cfg.QuotaFailPolicy == config.FailClosed)

	// Admission
	tierService := services.NewTierService(cfg.TierLimits)
	quotaStore := services.NewRedisQuotaStore(redisService.Client(), "")
	admission := services.NewAdmissionService(quotaStore, tierService, cfg.QuotaWindow,
		services.WithFailOpen(cfg.QuotaFailPolicy == config.FailOpen),
		services.WithAdmissionMetrics(metrics),
	)
	log.Printf("✅ Admission controller ready (tiers: %v)", tierService.Tiers())

	// Retrieval
	index, err := services.NewWeaviateIndex(cfg.WeaviateScheme, cfg.WeaviateHost, cfg.WeaviateClass)
	if err != nil {
		log.Fatalf("❌ Failed to create vector index client: %v", err)
	}
	healthService.Register(index, false)

	retrievalOpts := []services.RetrievalOption{
		services.WithOverfetchFactor(cfg.OverfetchFactor),
		services.WithRetrievalTimeout(cfg.RetrievalTimeout),
		services.WithRetrievalMetrics(metrics),
	}
	switch cfg.RetrievalCache {
	case config.CacheRedis:
		retrievalOpts = append(retrievalOpts, services.WithRetrievalCache(
			services.NewRedisRetrievalCache(redisService.Client(), cfg.RetrievalCacheTTL)))
	case config.CacheMemory:
		retrievalOpts = append(retrievalOpts, services.WithRetrievalCache(
			services.NewLocalRetrievalCache(cfg.RetrievalCacheTTL)))
	}
	retrieval := services.NewRetrievalService(index, retrievalOpts...)
	log.Printf("✅ Retrieval engine ready (%s, cache: %s)", retrieval, cfg.RetrievalCache)

	// Generation
	generator := services.NewGenerationService(services.GenerationConfig{
		BaseURL:     cfg.GenerationBaseURL,
		APIKey:      cfg.GenerationAPIKey,
		Model:       cfg.GenerationModel,
		MaxTokens:   cfg.GenerationMaxTokens,
		Temperature: cfg.GenerationTemperature,
		Timeout:     cfg.GenerationTimeout,
		RPS:         cfg.GenerationRPS,
	}, metrics)
	healthService.Register(generator, true)

	// Creator personas, reloaded when the file changes
	creators, err := services.LoadCreatorRegistry(cfg.CreatorsFile)
	if err != nil {
		log.Fatalf("❌ Failed to load creators from %s: %v", cfg.CreatorsFile, err)
	}
	if err := creators.Watch(ctx); err != nil {
		log.Printf("⚠️  Creator hot reload disabled: %v", err)
	}

	// Conversation store
	var (
		store services.ConversationStore
		sqlDB *database.DB
	)
	switch cfg.StoreBackend {
	case "mongo":
		mongoDB, err := database.NewMongoDB(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}
		defer mongoDB.Close(context.Background())
		if err := mongoDB.Initialize(ctx); err != nil {
			log.Fatalf("❌ Failed to initialize MongoDB: %v", err)
		}
		mongoStore := services.NewMongoConversationStore(mongoDB)
		healthService.Register(mongoStore, false)
		store = mongoStore
	default:
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Initialize(ctx); err != nil {
			log.Fatalf("❌ Failed to initialize database: %v", err)
		}
		sqlDB = db
		sqlStore := services.NewSQLConversationStore(db)
		healthService.Register(sqlStore, false)
		store = sqlStore
	}

	if results := preflight.NewChecker(cfg, sqlDB, creators).RunAll(ctx); preflight.HasFailures(results) {
		log.Fatal("❌ Pre-flight checks failed, refusing to start")
	}

	orchestrator := services.NewChatOrchestrator(
		creators,
		services.NewDispatcher(cfg.MaxConcurrentRequests, dispatchMaxWait, metrics),
		admission,
		retrieval,
		generator,
		store,
		services.OrchestratorConfig{
			MaxSnippets:     cfg.MaxSnippets,
			SimilarityFloor: cfg.SimilarityFloor,
			HistoryTurns:    cfg.HistoryTurns,
			PersistTimeout:  cfg.PersistTimeout,
		},
		metrics,
	)

	// Optional token identity
	var jwtAuth *auth.JWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewJWTAuth(cfg.JWTSecret, 0)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
		}
		log.Println("🔐 JWT identity enabled")
	} else {
		log.Println("⚠️  JWT_SECRET not set, identity and tier are taken from the request body")
	}

	// Background jobs
	jobScheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := jobScheduler.Register("dependency_probe", jobs.NewDependencyProbe(healthService, 30*time.Second)); err != nil {
		log.Fatalf("❌ Failed to register dependency probe: %v", err)
	}
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "PersonaChat v1.0",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	// Prometheus metrics middleware
	prom := fiberprometheus.New("personachat")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowCredentials := cfg.AllowedOrigins != "*"
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		ExposeHeaders:    "X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset,Retry-After,X-Request-ID",
		AllowCredentials: allowCredentials,
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", cfg.AllowedOrigins)

	rateLimitConfig := middleware.DefaultRateLimitConfig()
	rateLimitConfig.GlobalAPIMax = cfg.GlobalRequestsPerMin
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))
	log.Printf("🛡️  [RATE-LIMIT] Global API flood limit: %d/min per IP", rateLimitConfig.GlobalAPIMax)

	// Handlers
	healthHandler := handlers.NewHealthHandler(healthService)
	chatHandler := handlers.NewChatHandler(orchestrator, tierService)
	conversationHandler := handlers.NewConversationHandler(orchestrator)
	creatorHandler := handlers.NewCreatorHandler(creators)
	wsHandler := handlers.NewWebSocketHandler(chatHandler, metrics)

	app.Get("/health", healthHandler.Handle)
	app.Get("/ready", healthHandler.Ready)

	api := app.Group("/api/v1", middleware.IdentityMiddleware(jwtAuth))
	api.Post("/chat", chatHandler.Chat)
	api.Get("/conversations/:id/messages", conversationHandler.GetMessages)
	api.Get("/users/:user_id/conversations", conversationHandler.ListUserConversations)
	api.Get("/creators", creatorHandler.List)

	// WebSocket route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Use("/ws/chat", middleware.WebSocketRateLimiter(rateLimitConfig))
	app.Use("/ws/chat", middleware.IdentityMiddleware(jwtAuth))
	app.Get("/ws/chat", websocket.New(wsHandler.Handle, websocket.Config{
		Origins: strings.Split(cfg.AllowedOrigins, ","),
	}))

	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("💬 Chat endpoint: http://localhost:%s/api/v1/chat", cfg.Port)
	log.Printf("🔌 WebSocket endpoint: ws://localhost:%s/ws/chat", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Stop background jobs and the creator watcher
		if err := jobScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping job scheduler: %v", err)
		}
		stop()

		// In-flight requests finish their persistence before Fiber returns
		if err := app.ShutdownWithTimeout(cfg.GenerationTimeout + cfg.PersistTimeout); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
