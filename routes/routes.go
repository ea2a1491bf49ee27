package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ryanvade/infra-demo-lnl/app"
	"github.com/ryanvade/infra-demo-lnl/handlers"
	"github.com/ryanvade/infra-demo-lnl/internal/observability"
	"github.com/ryanvade/infra-demo-lnl/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	var db handlers.DatabaseChecker
	if deps.DB != nil {
		db = deps.DB
	}
	health := handlers.NewHealthHandler(db, deps.Authenticator, deps.Logger)
	todos := handlers.NewTodoHandler(deps.TodoService, deps.Logger)
	me := handlers.NewMeHandler(deps.Logger)

	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		r.With(deps.AuthMiddleware.RequireClaims).Get("/me", me.HandleMe)

		r.Route("/todos", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.Gate)
			r.Post("/", todos.HandleCreate)
			r.Get("/", todos.HandleList)
			r.Get("/{id}", todos.HandleGet)
			r.Patch("/{id}", todos.HandleUpdate)
			r.Delete("/{id}", todos.HandleDelete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
