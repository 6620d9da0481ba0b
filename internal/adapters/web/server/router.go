package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/geoloc/internal/adapters/web/middleware"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.TokenAuth(s.TokenHash))
	if s.Limiter != nil {
		api.Use(middleware.RateLimit(s.Limiter))
	}

	api.HandleFunc("/position", s.PositionHandler.HandleCurrent).Methods(http.MethodGet)

	api.HandleFunc("/config", s.ConfigHandler.HandleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/config", s.ConfigHandler.HandleSetConfig).Methods(http.MethodPut)

	api.HandleFunc("/authorization", s.AuthorizationHandler.HandleStatus).Methods(http.MethodGet)
	api.HandleFunc("/authorization", s.AuthorizationHandler.HandleRequest).Methods(http.MethodPost)

	api.HandleFunc("/watches", s.WatchHandler.HandleList).Methods(http.MethodGet)
	api.HandleFunc("/watches/stop", s.WatchHandler.HandleStopAll).Methods(http.MethodPost)
	api.HandleFunc("/watches/{id:[0-9]+}", s.WatchHandler.HandleClear).Methods(http.MethodDelete)

	if s.HistoryHandler != nil {
		api.HandleFunc("/history", s.HistoryHandler.HandleHistory).Methods(http.MethodGet)
		api.HandleFunc("/history/report", s.HistoryHandler.HandleReport).Methods(http.MethodGet)
	}
	if s.FeedHandler != nil {
		api.HandleFunc("/feed", s.FeedHandler.HandlePush).Methods(http.MethodPost)
	}

	// WebSocket endpoint (protected, not rate limited: one request per stream)
	r.Handle("/ws/watch", middleware.TokenAuth(s.TokenHash)(http.HandlerFunc(s.WSManager.HandleWatch))).Methods(http.MethodGet)

	r.Handle("/metrics", middleware.TokenAuth(s.TokenHash)(promhttp.Handler())).Methods(http.MethodGet)

	return r
}
