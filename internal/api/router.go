package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/chronos/internal/api/handlers"
	"github.com/wonny/chronos/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(taskHandler *handlers.TaskHandler, factorHandler *handlers.FactorHandler, progressHandler *handlers.ProgressHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Task lifecycle
	api.HandleFunc("/tasks", taskHandler.Create).Methods("POST")
	api.HandleFunc("/tasks/{id}", taskHandler.Get).Methods("GET")
	api.HandleFunc("/tasks/{id}/cancel", taskHandler.Cancel).Methods("POST")
	api.HandleFunc("/tasks/{id}/requeue", taskHandler.Requeue).Methods("POST")
	api.HandleFunc("/tasks/{id}/result", taskHandler.GetResult).Methods("GET")
	api.HandleFunc("/tasks/{id}/progress", progressHandler.Stream).Methods("GET")

	// Batches
	api.HandleFunc("/batches", taskHandler.CreateBatch).Methods("POST")
	api.HandleFunc("/batches/{id}", taskHandler.GetBatch).Methods("GET")
	api.HandleFunc("/batches/{id}/tasks", taskHandler.GetBatchTasks).Methods("GET")

	// Factor combinations
	api.HandleFunc("/combinations", factorHandler.Create).Methods("POST")
	api.HandleFunc("/combinations", factorHandler.List).Methods("GET")
	api.HandleFunc("/combinations/{id}", factorHandler.Get).Methods("GET")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "chronos-api",
	})
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
