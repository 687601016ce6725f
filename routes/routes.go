package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Dosada05/lan-tournament/docs"
	"github.com/Dosada05/lan-tournament/handlers"
	"github.com/Dosada05/lan-tournament/middleware"
	"github.com/Dosada05/lan-tournament/models"
)

// Options carries everything the router needs besides the handlers.
type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	ActionTokens   *middleware.ActionTokens
	IngestLimiter  middleware.RateLimiter
	Gatherer       prometheus.Gatherer
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	dashboardHandler *handlers.DashboardHandler,
	gameHandler *handlers.GameHandler,
	actionHandler *handlers.ActionHandler,
	adminHandler *handlers.AdminHandler,
	timeTrialHandler *handlers.TimeTrialHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.ActionTokenHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	router.Get("/swagger/doc.json", docs.Handler)
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Get("/ws/events/{eventID}", webSocketHandler.ServeWs)

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		// Публичные маршруты
		r.Get("/overview", dashboardHandler.Overview)
		r.Get("/leaderboard", dashboardHandler.Leaderboard)
		r.Get("/awards", dashboardHandler.Awards)
		r.Get("/users/{userID}/rank", dashboardHandler.UserRank)

		r.Route("/games", func(r chi.Router) {
			r.Get("/", gameHandler.ListGames)
			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", gameHandler.GetGame)
				r.Get("/registrations", gameHandler.ListRegistrations)
				r.Get("/pools", gameHandler.ListPools)
				r.Get("/matches", gameHandler.ListMatches)
			})
		})
		r.Get("/pools/{poolID}", gameHandler.GetPool)
		r.Get("/matches/{matchID}", gameHandler.GetMatch)

		r.Route("/timetrial", func(r chi.Router) {
			r.Get("/maps", timeTrialHandler.ListMaps)
			r.Get("/maps/{mapID}/records", timeTrialHandler.ListRecords)
			r.With(middleware.RateLimit(opts.IngestLimiter, middleware.IPKeyFunc)).Post("/", timeTrialHandler.Submit)
		})

		// Маршруты игрока
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize(models.RoleAdmin, models.RolePlayer))

			r.Get("/me/pending", gameHandler.MyPending)
			r.Get("/action/token", actionHandler.IssueToken)
			r.With(opts.ActionTokens.Require).Post("/action", actionHandler.Dispatch)
		})

		// Маршруты организатора
		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize(models.RoleAdmin))

			r.Post("/games", adminHandler.CreateGame)
			r.Post("/games/{gameID}/pools", adminHandler.CreatePools)
			r.Post("/games/{gameID}/pools/process", adminHandler.ProcessPools)
			r.Post("/games/{gameID}/pools/final", adminHandler.ProcessFinalPool)
			r.Put("/pools/{poolID}/ranks", adminHandler.SetPoolRanks)
			r.Post("/snapshots", adminHandler.CreateSnapshot)
			r.Post("/timetrial/maps/{mapID}/process", adminHandler.ProcessMap)
			r.Post("/points", adminHandler.AddPoints)
			r.Get("/standings.xlsx", adminHandler.ExportStandings)
		})
	})
}
