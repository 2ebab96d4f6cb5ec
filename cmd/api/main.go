package main

import (
	"context"
	"net/http"
	"os"
	"strings"

	"storefront-session-layer/internal/application"
	"storefront-session-layer/internal/config"
	apiinfra "storefront-session-layer/internal/infrastructure/api"
	"storefront-session-layer/internal/infrastructure/metrics"
	"storefront-session-layer/internal/infrastructure/repository"
	shopifyinfra "storefront-session-layer/internal/infrastructure/shopify"
	"storefront-session-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logger.Level)); err == nil {
		logger = logger.Level(level)
	}

	// Connect to MongoDB
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.Mongo.Database)

	// Initialize stores
	installationStore := repository.NewMongoInstallationRepository(db)

	var sessionStore ports.SessionStore
	switch cfg.App.SessionBackend {
	case config.SessionBackendRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn().Err(err).Msg("Unable to reach redis")
		}
		defer redisClient.Close()
		sessionStore = repository.NewRedisSessionRepository(redisClient)
	default:
		sessionStore = repository.NewMongoSessionRepository(db)
	}

	// Initialize the platform client and token decoder
	platformClient := shopifyinfra.NewClient(cfg.Shopify.APIKey, cfg.Shopify.APISecret, logger)
	tokenDecoder := shopifyinfra.NewSessionTokenDecoder(cfg.Shopify.APIKey, cfg.Shopify.APISecret)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	// Initialize application services
	webhookRegistry := application.NewWebhookRegistry(
		platformClient,
		installationStore,
		sessionStore,
		cfg.WebhookCallbackURL(),
		logger,
	)
	webhookRegistry.AddHandlers()

	authService := application.NewAuthService(
		tokenDecoder,
		platformClient,
		sessionStore,
		installationStore,
		webhookRegistry,
		logger,
	)

	server := apiinfra.NewServer(authService, webhookRegistry, platformClient, m, logger)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// Webhook delivery endpoint
	r.Post("/api/webhooks", server.HandleWebhook)

	// Authenticated API
	r.Group(func(r chi.Router) {
		r.Use(server.RequireSession(true))
		r.Get("/api/hello", server.HandleHello)
	})

	logger.Info().Str("addr", cfg.App.Addr()).Msg("Starting API server")
	if err := http.ListenAndServe(cfg.App.Addr(), r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}
