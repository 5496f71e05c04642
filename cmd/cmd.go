package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripmate-backend/internal/config"
	"tripmate-backend/internal/handlers"
	"tripmate-backend/internal/mailer"
	"tripmate-backend/internal/middleware"
	"tripmate-backend/internal/repository"
	"tripmate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	tripRepo := repository.NewTripRepository(db)
	collabRepo := repository.NewCollaboratorRepository(db)
	shareLinkRepo := repository.NewShareLinkRepository(db)

	// Initialize services
	smtpMailer := mailer.NewSMTPMailer(cfg.Mail)
	accessService := services.NewAccessService(tripRepo, collabRepo)
	invitationService := services.NewInvitationService(tripRepo, collabRepo, smtpMailer, cfg.Frontend.BaseURL)
	shareLinkService := services.NewShareLinkService(tripRepo, shareLinkRepo)
	syncService := services.NewSyncService(accessService, tripRepo)
	templateService := services.NewTemplateService(tripRepo)
	presenceRegistry := services.NewPresenceRegistry(accessService, time.Duration(cfg.Presence.TTLSeconds)*time.Second)

	// Initialize handlers
	validate := validator.New()
	invitationHandler := handlers.NewInvitationHandler(invitationService, validate)
	shareLinkHandler := handlers.NewShareLinkHandler(shareLinkService, validate)
	syncHandler := handlers.NewSyncHandler(syncService, validate)
	presenceHandler := handlers.NewPresenceHandler(presenceRegistry)
	templateHandler := handlers.NewTemplateHandler(templateService, validate)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(middleware.Identity(cfg.JWT.Secret, userRepo))

	r.Get("/api/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	// Routes
	r.Route("/api/f1", func(r chi.Router) {
		r.Post("/trips/{trip_id}/invite/", invitationHandler.Invite)
		r.Get("/trips/{trip_id}/collaborators/", invitationHandler.ListCollaborators)
		r.Get("/trip-invitation/{token}/accept/", invitationHandler.Preview)
		r.Post("/trip-invitation/{token}/accept/", invitationHandler.Accept)
	})
	r.Route("/api/f2", func(r chi.Router) {
		r.Post("/share/create/", shareLinkHandler.Create)
		r.Get("/share/{token}/", shareLinkHandler.Resolve)
		r.Post("/share/{token}/revoke/", shareLinkHandler.Revoke)
		r.Post("/sync/", syncHandler.Sync)
		r.Post("/trips/{trip_id}/presence/", presenceHandler.Touch)
		r.Post("/copy-template/", templateHandler.Copy)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
