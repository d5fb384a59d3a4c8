package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/arkanlabs/riskpipe/internal/api/handlers"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(
	predictHandler *handlers.PredictHandler,
	trainHandler *handlers.TrainHandler,
	modelsHandler *handlers.ModelsHandler,
	eventsHandler *handlers.EventsHandler,
	limiter *PredictLimiter,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Serving
	api.Handle("/predict",
		rateLimitMiddleware(limiter)(http.HandlerFunc(predictHandler.Predict))).Methods("POST")

	// Training
	api.HandleFunc("/train", trainHandler.Trigger).Methods("POST")
	api.HandleFunc("/train/events", eventsHandler.Stream).Methods("GET")
	api.HandleFunc("/runs", trainHandler.ListRuns).Methods("GET")

	// Model registry
	api.HandleFunc("/models", modelsHandler.ListVersions).Methods("GET")
	api.HandleFunc("/models/current", modelsHandler.GetCurrent).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "riskpipe-api",
	})
}

// rateLimitMiddleware throttles a single route with the predict limiter.
func rateLimitMiddleware(limiter *PredictLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow(r.Context()) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "RateLimited",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
