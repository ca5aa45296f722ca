package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/haakonsb/liftchat/internal/auth"
	"github.com/haakonsb/liftchat/internal/handlers"
	"github.com/haakonsb/liftchat/internal/middleware"
	"github.com/haakonsb/liftchat/internal/models"
	"github.com/haakonsb/liftchat/internal/repositories"
	"github.com/haakonsb/liftchat/internal/session"
	"github.com/haakonsb/liftchat/pkg/logger"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	chatHandler *handlers.ChatHandler,
	adminHandler *handlers.AdminHandler,
	sessionManager *session.Manager,
	userRepo *repositories.UserRepository,
	auditLogger *logger.AuditLogger,
) {
	authRateLimit := middleware.DefaultAuthRateLimit()
	chatRateLimit := middleware.DefaultChatRateLimit()

	// Every route sees the session when one exists; enforcement happens
	// per group below.
	router.Use(auth.WithSession(sessionManager))

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/login", authHandler.Login)

	// Logout is safe to call without a session, so it stays outside the gate.
	router.Post("/auth/logout", authHandler.Logout)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuthenticated(sessionManager))

		r.Get("/chat/conversations", chatHandler.ListConversations)
		r.Post("/chat/conversations", chatHandler.StartConversation)
		r.Get("/chat/conversations/{conversationID}/messages", chatHandler.ListMessages)
		r.With(middleware.RateLimitBySession(chatRateLimit)).
			Post("/chat/conversations/{conversationID}/messages", chatHandler.SendMessage)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, auditLogger, models.RoleAdmin))
			r.Get("/admin/users", adminHandler.ListUsers)
		})
	})
}
