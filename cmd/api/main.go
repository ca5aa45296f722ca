package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/haakonsb/liftchat/internal/background"
	"github.com/haakonsb/liftchat/internal/config"
	"github.com/haakonsb/liftchat/internal/database"
	"github.com/haakonsb/liftchat/internal/gateway"
	"github.com/haakonsb/liftchat/internal/handlers"
	middlewareCustom "github.com/haakonsb/liftchat/internal/middleware"
	"github.com/haakonsb/liftchat/internal/repositories"
	"github.com/haakonsb/liftchat/internal/routes"
	"github.com/haakonsb/liftchat/internal/services"
	"github.com/haakonsb/liftchat/internal/session"
	pkglogger "github.com/haakonsb/liftchat/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Run pending migrations before accepting traffic
	migrationCtx, migrationCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := database.RunMigrations(migrationCtx, cfg.Database.DSN(), "migrations"); err != nil {
		migrationCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrationCancel()

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)

	// Session store selection
	sessionStore, err := newSessionStore(&cfg.Session)
	if err != nil {
		logger.Error("failed to initialize session store", slog.Any("error", err))
		os.Exit(1)
	}
	sessionManager := session.NewManager(sessionStore, &cfg.Session)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(
		loginAttemptRepo,
		cfg.Auth.LockoutWindow,
		cfg.Auth.CleanupInterval,
		logger,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Initialize services
	lockoutService := services.NewLockoutService(loginAttemptRepo, services.LockoutConfig{
		MaxAttempts: cfg.Auth.LockoutThreshold,
		Window:      cfg.Auth.LockoutWindow,
	}, logger)
	authService := services.NewAuthService(userRepo, lockoutService, logger, auditLogger)

	completer := gateway.NewClient(&cfg.OpenAI, logger)
	chatService := services.NewChatService(conversationRepo, completer, cfg.OpenAI.SystemPrompt, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, sessionManager, chatService, cfg.Auth.LockoutWindow)
	chatHandler := handlers.NewChatHandler(chatService)
	adminHandler := handlers.NewAdminHandler(userRepo)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CSRFProtection(cfg.Server.PublicHost, logger))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, chatHandler, adminHandler, sessionManager, userRepo, auditLogger)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func newSessionStore(cfg *config.SessionConfig) (session.Store, error) {
	if cfg.Backend == "redis" {
		return session.NewRedisStore(cfg)
	}
	return session.NewMemoryStore(), nil
}
