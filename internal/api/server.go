// Package api exposes the observation and offer endpoints over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"OfferTracker/internal/ports"
	"OfferTracker/internal/store"
	"OfferTracker/internal/usecase"
)

// Deps carries everything the handlers need.
type Deps struct {
	Registry   *store.Registry
	Refresher  *usecase.Refresher
	Scheduler  *usecase.Scheduler
	Source     ports.ListingSource
	Repository ports.OfferRepository
	Catalog    ports.FilterCatalog
	Metrics    *usecase.Metrics
	Logger     *slog.Logger
}

// Server holds dependencies for the HTTP handlers.
type Server struct {
	registry   *store.Registry
	refresher  *usecase.Refresher
	scheduler  *usecase.Scheduler
	source     ports.ListingSource
	repository ports.OfferRepository
	catalog    ports.FilterCatalog
	logger     *slog.Logger
	handler    http.Handler
}

// New wires up routes and returns a ready-to-use Server.
func New(deps Deps) *Server {
	s := &Server{
		registry:   deps.Registry,
		refresher:  deps.Refresher,
		scheduler:  deps.Scheduler,
		source:     deps.Source,
		repository: deps.Repository,
		catalog:    deps.Catalog,
		logger:     deps.Logger,
	}

	r := mux.NewRouter()

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/observations", s.handleListObservations).Methods(http.MethodGet)
	r.HandleFunc("/api/observations", s.handleCreateObservation).Methods(http.MethodPost)
	r.HandleFunc("/api/observations/{id}", s.handleGetObservation).Methods(http.MethodGet)
	r.HandleFunc("/api/observations/{id}", s.handlePatchObservation).Methods(http.MethodPatch)
	r.HandleFunc("/api/observations/{id}", s.handleDeleteObservation).Methods(http.MethodDelete)
	r.HandleFunc("/api/observations/{id}/refresh", s.handleRefreshObservation).Methods(http.MethodPost)

	r.HandleFunc("/api/category-filters", s.handleCategoryFilters).Methods(http.MethodGet)
	r.HandleFunc("/api/categories", s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc("/api/sample-offers", s.handleSampleOffers).Methods(http.MethodGet)

	r.HandleFunc("/api/offers/", s.handleCreateOffer).Methods(http.MethodPost)
	r.HandleFunc("/api/offers/by-observation/{id}", s.handleOffersByObservation).Methods(http.MethodGet)
	r.HandleFunc("/api/offers/{id}", s.handleGetOffer).Methods(http.MethodGet)

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	s.handler = cors(r)
	return s
}

// ServeHTTP makes Server satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// cors allows any origin and answers preflight requests directly, so the
// middleware must wrap the router rather than hang off matched routes.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
