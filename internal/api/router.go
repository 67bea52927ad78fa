package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shivanandham/pregnancy-assistant/internal/api/handlers"
	"github.com/shivanandham/pregnancy-assistant/internal/api/middleware"
	"github.com/shivanandham/pregnancy-assistant/internal/config"
	"github.com/shivanandham/pregnancy-assistant/internal/metrics"
	"github.com/shivanandham/pregnancy-assistant/internal/repository"
	"github.com/shivanandham/pregnancy-assistant/internal/service"
)

func NewRouter(services *service.Services, repos *repository.Repositories, cfg *config.Config, registry *prometheus.Registry, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))
	}

	authHandler := handlers.NewAuthHandler(services.Verifier, services.Session)
	chatHandler := handlers.NewChatHandler(services.Chat, repos.Message)
	knowledgeHandler := handlers.NewKnowledgeHandler(repos.Fact, repos.Chunk)
	pregnancyHandler := handlers.NewPregnancyHandler(repos.Pregnancy)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Public endpoints, rate limited by client IP.
			r.Group(func(r chi.Router) {
				if limiter != nil {
					r.Use(limiter.Middleware)
				}
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Session))
				r.Post("/logout", authHandler.Logout)
				r.Post("/logout-all", authHandler.LogoutAll)
				r.Get("/profile", authHandler.Profile)
				r.Delete("/account", authHandler.DeleteAccount)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Session))

			r.Post("/chat/send", chatHandler.Send)
			r.Get("/chat/history", chatHandler.History)

			r.Put("/pregnancy", pregnancyHandler.Set)
			r.Get("/pregnancy", pregnancyHandler.Get)

			r.Route("/knowledge", func(r chi.Router) {
				r.Get("/facts", knowledgeHandler.ListFacts)
				r.Delete("/facts/{id}", knowledgeHandler.DeleteFact)
				r.Delete("/facts", knowledgeHandler.DeleteAllFacts)
				r.Get("/conversations", knowledgeHandler.ListConversations)
				r.Delete("/conversations/{id}", knowledgeHandler.DeleteConversation)
				r.Get("/stats", knowledgeHandler.Stats)
			})
		})
	})

	return r
}
