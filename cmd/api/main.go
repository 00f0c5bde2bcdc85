package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/chactivo/chactivo-api/internal/config"
	"github.com/chactivo/chactivo-api/internal/domain/admin"
	"github.com/chactivo/chactivo-api/internal/domain/auth"
	"github.com/chactivo/chactivo-api/internal/domain/chat"
	"github.com/chactivo/chactivo-api/internal/domain/forum"
	"github.com/chactivo/chactivo-api/internal/domain/moderation"
	"github.com/chactivo/chactivo-api/internal/domain/profile"
	"github.com/chactivo/chactivo-api/internal/domain/status"
	"github.com/chactivo/chactivo-api/internal/domain/user"
	"github.com/chactivo/chactivo-api/internal/jobs"
	"github.com/chactivo/chactivo-api/internal/middleware"
	"github.com/chactivo/chactivo-api/internal/pkg/database"
	"github.com/chactivo/chactivo-api/internal/pkg/jwt"
	"github.com/chactivo/chactivo-api/internal/pkg/logger"
	"github.com/chactivo/chactivo-api/internal/pkg/metrics"
	"github.com/chactivo/chactivo-api/internal/pkg/storage"
	"github.com/chactivo/chactivo-api/internal/seeder"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("Starting chactivo-api")

	// Infrastructure
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running single-instance")
		redisClient = nil
	}
	if redisClient != nil {
		defer database.CloseRedis(redisClient)
	}

	var mediaStore storage.Storage
	if cfg.S3Bucket != "" {
		mediaStore, err = storage.NewS3Storage(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
		}
	} else {
		mediaStore, err = storage.NewLocalStorage(cfg.LocalMedia, "/media")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize local storage")
		}
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	// Repositories
	userRepo := user.NewRepository(db)
	chatRepo := chat.NewRepository(db)
	moderationRepo := moderation.NewRepository(db)
	profileRepo := profile.NewRepository(db)
	forumRepo := forum.NewRepository(db)
	statusRepo := status.NewRepository(db)

	// Services
	moderationSvc := moderation.NewService(moderationRepo, userRepo, redisClient)

	hub := chat.NewHub(redisClient)
	go hub.Run()
	defer hub.Shutdown()

	limiter := chat.NewRateLimiter(chat.RateLimitConfig{
		MinInterval:   cfg.ChatMinInterval,
		Window:        cfg.ChatWindow,
		MaxPerWindow:  cfg.ChatMaxPerWindow,
		MaxDuplicates: cfg.ChatMaxDuplicates,
		MuteDuration:  cfg.ChatMuteDuration,
	}, moderationSvc)

	chatSvc := chat.NewService(chatRepo, hub, limiter, cfg.DeliveryTimeout, moderationSvc)
	defer chatSvc.Close()

	authSvc := auth.NewService(userRepo, jwtService, redisClient)
	profileSvc := profile.NewService(profileRepo, mediaStore)
	forumSvc := forum.NewService(forumRepo)
	statusSvc := status.NewService(statusRepo, hub, cfg.StatusTTL)
	adminSvc := admin.NewService(userRepo, chatRepo, chatSvc, moderationSvc, hub)

	// Handlers
	authHandler := auth.NewHandler(authSvc)
	chatHandler := chat.NewHandler(chatSvc, hub, moderationSvc, cfg.AllowedOrigins)
	moderationHandler := moderation.NewHandler(moderationSvc)
	profileHandler := profile.NewHandler(profileSvc)
	forumHandler := forum.NewHandler(forumSvc)
	statusHandler := status.NewHandler(statusSvc)
	adminHandler := admin.NewHandler(adminSvc)

	authMiddleware := middleware.Auth(jwtService)

	// Router
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes(authMiddleware))
		r.Mount("/chat", chatHandler.Routes(authMiddleware))
		r.Mount("/moderation", moderationHandler.Routes(authMiddleware))
		r.Mount("/profiles", profileHandler.Routes(authMiddleware))
		r.Mount("/forum", forumHandler.Routes(authMiddleware))
		r.Mount("/statuses", statusHandler.Routes(authMiddleware))
		r.Mount("/admin", adminHandler.Routes(authMiddleware))
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/ws", chatHandler.WebSocket)
	})

	// Background jobs
	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	janitor, err := jobs.NewJanitor(cfg.JanitorSchedule,
		jobs.Sweeper{Name: "expired_statuses", Run: func(ctx context.Context) (int64, error) {
			return statusSvc.SweepExpired(ctx)
		}},
		jobs.Sweeper{Name: "expired_mutes", Run: func(ctx context.Context) (int64, error) {
			return moderationSvc.ExpireMutes(ctx, time.Now().Add(-30*24*time.Hour))
		}},
		jobs.Sweeper{Name: "deleted_messages", Run: func(ctx context.Context) (int64, error) {
			return chatRepo.PurgeDeletedMessages(ctx, time.Now().Add(-30*24*time.Hour))
		}},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure janitor")
	}
	go janitor.Run(jobsCtx)

	if cfg.SeederEnabled {
		sd, err := seeder.New(chatSvc, chatRepo, cfg.SeederScriptPath, cfg.SeederSchedule, cfg.SeederQuietAfter)
		if err != nil {
			log.Error().Err(err).Msg("Failed to start seeder")
		} else {
			go sd.Run(jobsCtx)
		}
	}

	// HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
