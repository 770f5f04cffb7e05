/*
server.go - HTTP router and middleware configuration

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (zap)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/health           Liveness and database check
  /api/employees/*      Reference data and computed records per employee
  /api/regulations/*    Work regulations
  /api/intervals/*      Work interval removal
  /api/attendance/*     Recompute operations and run history
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. Put the server behind an authenticating
  proxy before exposing it.
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/contracts", h.ListContracts)
			r.Post("/{id}/contracts", h.CreateContract)
			r.Get("/{id}/intervals", h.ListWorkIntervals)
			r.Post("/{id}/intervals", h.CreateWorkInterval)
			r.Get("/{id}/daily", h.GetDailyRecords)
			r.Get("/{id}/monthly/{month}", h.GetMonthlyRecord)
		})

		r.Delete("/intervals/{intervalID}", h.DeleteWorkInterval)

		r.Route("/regulations", func(r chi.Router) {
			r.Get("/", h.ListRegulations)
			r.Post("/", h.CreateRegulation)
			r.Get("/{id}", h.GetRegulation)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/daily/recompute", h.RecomputeDaily)
			r.Post("/weekly/reallocate", h.ReallocateWeekly)
			r.Post("/monthly/recompute", h.RecomputeMonthly)
			r.Post("/recompute", h.Recompute)
			r.Get("/runs", h.ListRuns)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// requestLogger logs one line per request, at Warn for 4xx and Error for 5xx.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Duration("latency", time.Since(start)),
			}

			switch {
			case status >= 500:
				logger.Error("request failed", fields...)
			case status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request completed", fields...)
			}
		})
	}
}
