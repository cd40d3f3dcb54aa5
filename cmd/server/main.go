package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AnshRaj112/tripjournal-backend/internal/config"
	"github.com/AnshRaj112/tripjournal-backend/internal/database"
	"github.com/AnshRaj112/tripjournal-backend/internal/handlers"
	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/AnshRaj112/tripjournal-backend/internal/middleware"
	"github.com/AnshRaj112/tripjournal-backend/internal/repository"
	"github.com/AnshRaj112/tripjournal-backend/internal/routes"
	"github.com/AnshRaj112/tripjournal-backend/internal/services"
	"github.com/AnshRaj112/tripjournal-backend/pkg/clientip"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Debug().Msg("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := clientip.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logging.Fatal().Err(err).Msg("Invalid trusted proxy list")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := handlers.NewHealthHandler()

	store, closeStore := openStore(ctx, cfg, health)
	defer closeStore()

	redisReady := true
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		// Sessions, events and the shared limiter are unavailable without Redis.
		logging.Warn().Err(err).Msg("Failed to connect to Redis, continuing without it")
		redisReady = false
	} else {
		defer database.DisconnectRedis()
		health.Register("redis", database.PingRedis)
	}

	reconciler := services.NewReconciler(newMetadataProvider(cfg, redisReady))
	media := newMediaCollaborator(cfg)

	hub := services.NewEventHub()
	var events services.EventPublisher = services.NoopEventPublisher{}
	if redisReady {
		events = services.NewRedisEventPublisher(database.RedisClient)
		hub.Start(ctx, database.RedisClient)
	}

	journalService := services.NewJournalService(store, reconciler, media, events, services.JournalServiceOptions{
		EnrichmentEnabled:     cfg.Journal.EnrichmentEnabled,
		MediaCallbacksEnabled: cfg.Journal.MediaCallbacksEnabled,
	})

	var sessions middleware.SessionValidator
	if cfg.Auth.SessionsEnabled && redisReady {
		sessions = services.ValidateSession
	}
	var limiter *middleware.RedisRateLimiter
	if redisReady {
		limiter = middleware.NewRedisRateLimiter(database.RedisClient, cfg.RateLimitRPM)
	}

	router := routes.NewRouter(routes.Options{
		Production:     cfg.IsProduction(),
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitRPM:   cfg.RateLimitRPM,
		Journals:       handlers.NewJournalHandler(journalService),
		Events:         handlers.NewEventStream(hub, cfg.AllowedOrigins),
		Health:         health,
		Auth:           middleware.NewAuthenticator(cfg.Auth.JWTSecret, sessions),
		RateLimiter:    limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Environment).
			Str("store", cfg.Store.Driver).
			Str("media", cfg.Media.Driver).
			Bool("enrichment", cfg.Journal.EnrichmentEnabled).
			Msg("Trip journal backend running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// openStore connects the configured journal backend and registers its health
// check. The returned func releases the connection.
func openStore(ctx context.Context, cfg *config.Config, health *handlers.HealthHandler) (repository.JournalStore, func()) {
	switch cfg.Store.Driver {
	case "postgres":
		if err := database.ConnectPostgres(cfg.Store.PostgresURI); err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		health.Register("postgres", func(ctx context.Context) error {
			return database.PostgresDB.PingContext(ctx)
		})
		return repository.NewPostgresJournalStore(database.PostgresDB), func() { _ = database.DisconnectPostgres() }

	case "memory":
		logging.Warn().Msg("Using in-memory journal store; data is lost on restart")
		return repository.NewMemoryJournalStore(), func() {}

	default:
		if err := database.Connect(cfg.Store.MongoURI, cfg.Store.MongoDatabase); err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		store := repository.NewMongoJournalStore(database.DB)
		if err := store.EnsureIndexes(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to ensure MongoDB journal indexes")
		}
		health.Register("mongo", database.PingMongo)
		return store, func() { _ = database.Disconnect() }
	}
}

func newMetadataProvider(cfg *config.Config, redisReady bool) services.MetadataProvider {
	if cfg.Weather.APIKey == "" {
		logging.Warn().Msg("OPENWEATHER_API_KEY not set, location enrichment will be skipped")
		return nil
	}
	var provider services.MetadataProvider = services.NewOpenWeatherClient(services.OpenWeatherConfig{
		BaseURL:           cfg.Weather.BaseURL,
		APIKey:            cfg.Weather.APIKey,
		Timeout:           cfg.Weather.Timeout,
		RequestsPerMinute: cfg.Weather.RequestsPerMinute,
	})
	if cfg.Weather.CacheTTL > 0 && redisReady {
		provider = services.NewCachedMetadataProvider(provider, cfg.Weather.CacheTTL)
	}
	return provider
}

func newMediaCollaborator(cfg *config.Config) services.MediaCollaborator {
	switch cfg.Media.Driver {
	case "cloudinary":
		svc, err := services.NewCloudinaryService(cfg.Media.CloudinaryName, cfg.Media.CloudinaryAPIKey, cfg.Media.CloudinaryAPISecret)
		if err != nil {
			logging.Warn().Err(err).Msg("Cloudinary unavailable, media callbacks disabled")
			return services.NoopMediaCollaborator{}
		}
		logging.Info().Msg("Cloudinary media backend initialized")
		return svc
	case "none":
		return services.NoopMediaCollaborator{}
	default:
		return services.NewTripMediaClient(cfg.Media.BaseURL, cfg.Media.Timeout)
	}
}
