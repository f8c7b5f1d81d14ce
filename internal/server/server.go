package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/epi-orchestrator/internal/infra"
	"github.com/xela07ax/epi-orchestrator/internal/server/handler"
)

// Version отдается в баннере API.
const Version = "1.0.0"

type Server struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Обработчики бизнес-доменов
	eventHandler *handler.EventHandler         // /api/events/*
	orchHandler  *handler.OrchestrationHandler // /api/orchestrate
	queryHandler *handler.QueryHandler         // /api/events/history, /api/decisions, /api/stats
}

// New инициализирует HTTP-сервер шлюза со всеми зависимостями
func New(
	cfg *infra.Config,
	logger *zap.Logger,
	eventH *handler.EventHandler,
	orchH *handler.OrchestrationHandler,
	queryH *handler.QueryHandler,
) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		logger:       logger.Named("http"),
		cfg:          cfg,
		eventHandler: eventH,
		orchHandler:  orchH,
		queryHandler: queryH,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(rateLimitMiddleware(rate.NewLimiter(
		rate.Limit(s.cfg.Server.RateLimitRPS),
		s.cfg.Server.RateLimitBurst,
	)))

	// Healthcheck для мониторинга
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		// Баннер сервиса
		r.Get("/", s.handleRoot)

		// Прием событий (прямой путь записи)
		r.Post("/events/face", s.eventHandler.SubmitFace)
		r.Post("/events/epi", s.eventHandler.SubmitEpi)

		// Полная оркестрация: события + решение за один вызов
		r.Post("/orchestrate", s.orchHandler.Orchestrate)

		// Read-сторона
		r.Get("/events/history", s.queryHandler.History)
		r.Get("/decisions", s.queryHandler.Decisions)
		r.Get("/stats", s.queryHandler.Stats)

		// Только для стендов, закрыто флагом engine.allow_clear
		r.Delete("/events/clear", s.queryHandler.Clear)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"message": "EPI Orchestrator API", "version": "` + Version + `", "status": "operational"}`))
}

// rateLimitMiddleware отбрасывает лишний трафик до ядра: шторм событий с
// камер не должен доезжать до хранилища.
func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error": "rate_limited", "message": "too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
