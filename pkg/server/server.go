package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"live-chat-supervisor/pkg/handlers"
)

// NewRouter wires the supervisor API. ws may be nil when no panel hub runs.
func NewRouter(handler *handlers.Handler, ws http.HandlerFunc, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/conversations", handler.CreateConversation).Methods("POST")
	router.HandleFunc("/conversations", handler.ListConversations).Methods("GET")
	router.HandleFunc("/conversations/{id}", handler.GetConversation).Methods("GET")
	router.HandleFunc("/conversations/{id}/messages", handler.AppendMessage).Methods("POST")
	router.HandleFunc("/conversations/{id}/active", handler.SetActive).Methods("PUT")
	router.HandleFunc("/observe", handler.Observe).Methods("POST")
	router.HandleFunc("/status", handler.Status).Methods("GET")
	router.HandleFunc("/settings", handler.GetSettings).Methods("GET")
	router.HandleFunc("/settings", handler.PutSettings).Methods("PUT")
	router.HandleFunc("/settings/monitoring/toggle", handler.ToggleMonitoring).Methods("POST")
	router.HandleFunc("/health", handler.Health).Methods("GET")

	if ws != nil {
		router.HandleFunc("/ws", ws).Methods("GET")
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.Use(loggingMiddleware(logger))

	return router
}

func NewHTTPServer(port string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Debug("HTTP request processed")
		})
	}
}
