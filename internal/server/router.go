package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(v1 chi.Router) {
		if s.authMw != nil {
			v1.Use(s.authMw.Middleware)
		}

		v1.Get("/ambulances", s.handleListAmbulances)
		v1.Get("/ambulances/{ambulanceID}", s.handleGetAmbulance)

		v1.Post("/dispatches", s.handleCreateDispatch)
		v1.Get("/dispatches", s.handleListDispatches)
		v1.Get("/dispatches/recent", s.handleListRecentDispatches)
		v1.Get("/dispatches/{dispatchID}", s.handleGetDispatch)
		v1.Patch("/dispatches/{dispatchID}/status", s.handleUpdateDispatchStatus)
		v1.Post("/dispatches/{dispatchID}/assign", s.handleAssignDispatch)
		v1.Post("/dispatches/{dispatchID}/optimize", s.handleOptimizeDispatch)

		v1.Post("/dispatches/{dispatchID}/gps", s.handleRecordGpsPing)
		v1.Get("/dispatches/{dispatchID}/gps", s.handleListGpsPings)
		v1.Post("/dispatches/{dispatchID}/feedback", s.handleRecordFeedback)

		v1.Post("/predictions/severity", s.handlePredictSeverity)
		v1.Post("/predictions/eta", s.handlePredictETA)
		v1.Get("/predictions/health", s.handleModelsHealth)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		duration := time.Since(start)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Msg("http request")
	})
}
