package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"OfferTracker/internal/domain"
	"OfferTracker/internal/format"
	"OfferTracker/internal/infrastructure/storage"
	"OfferTracker/internal/store"
)

const sampleLimit = 10

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------- Observations ----------

func (s *Server) handleListObservations(w http.ResponseWriter, _ *http.Request) {
	now := time.Now().UnixMilli()
	observations := s.registry.List()

	views := make([]map[string]any, 0, len(observations))
	for _, obs := range observations {
		views = append(views, observationView(obs, s.registry.Offers(obs.ID), now))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateObservation(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObservationBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	obs, err := s.registry.Create(body.observation())
	if errors.Is(err, store.ErrCategoryRequired) {
		writeError(w, http.StatusBadRequest, "categoryId is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.scheduler != nil {
		s.scheduler.Schedule(obs.ID)
	}
	s.info("observation created", "id", obs.ID, "category", obs.CategoryID)

	writeJSON(w, http.StatusCreated, observationView(obs, s.registry.Offers(obs.ID), time.Now().UnixMilli()))
}

func (s *Server) handleGetObservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	obs, err := s.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "observation not found")
		return
	}
	writeJSON(w, http.StatusOK, observationView(obs, s.registry.Offers(id), time.Now().UnixMilli()))
}

func (s *Server) handlePatchObservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	body, err := decodeObservationBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := s.registry.ApplyPatch(id, body.patch()); err != nil {
		writeError(w, http.StatusNotFound, "observation not found")
		return
	}

	offers, err := s.refresher.Refresh(r.Context(), id)
	if err != nil {
		s.respondRefreshError(w, id, err)
		return
	}

	obs, err := s.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "observation not found")
		return
	}
	writeJSON(w, http.StatusOK, observationView(obs, offers, time.Now().UnixMilli()))
}

func (s *Server) handleRefreshObservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	offers, err := s.refresher.RefreshAndPersist(r.Context(), id)
	if err != nil {
		s.respondRefreshError(w, id, err)
		return
	}

	obs, err := s.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "observation not found")
		return
	}
	writeJSON(w, http.StatusOK, observationView(obs, offers, time.Now().UnixMilli()))
}

func (s *Server) handleDeleteObservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if s.scheduler != nil {
		s.scheduler.Cancel(id)
	}
	s.registry.Delete(id)
	s.info("observation deleted", "id", id)

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) respondRefreshError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "observation not found")
	case errors.Is(err, store.ErrCategoryRequired):
		writeError(w, http.StatusBadRequest, "categoryId is required for this observation")
	default:
		s.warn("refresh failed", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "marketplace fetch failed")
	}
}

// ---------- Catalog ----------

func (s *Server) handleCategoryFilters(w http.ResponseWriter, r *http.Request) {
	categoryID, err := strconv.Atoi(r.URL.Query().Get("categoryId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "categoryId must be numeric")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": s.catalog.FiltersFor(categoryID)})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Categories())
}

// ---------- Sample offers ----------

func (s *Server) handleSampleOffers(w http.ResponseWriter, r *http.Request) {
	categoryID := r.URL.Query().Get("categoryId")
	if _, err := strconv.Atoi(categoryID); err != nil {
		writeError(w, http.StatusBadRequest, "categoryId must be numeric")
		return
	}

	listings, err := s.source.Fetch(r.Context(), categoryID, sampleLimit)
	if err != nil {
		s.warn("sample fetch failed", "category", categoryID, "error", err)
		writeError(w, http.StatusBadGateway, "marketplace fetch failed")
		return
	}
	if len(listings) > sampleLimit {
		listings = listings[:sampleLimit]
	}
	writeJSON(w, http.StatusOK, format.Offers(listings, time.Now()))
}

// ---------- Stored offers ----------

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	if s.repository == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	var offer domain.StoredOffer
	if err := decodeJSON(r, &offer); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if offer.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := s.repository.Insert(r.Context(), offer); err != nil {
		s.warn("offer insert failed", "id", offer.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "offer insert failed")
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	if s.repository == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	id := mux.Vars(r)["id"]
	offer, err := s.repository.Get(r.Context(), id)
	if errors.Is(err, storage.ErrOfferNotFound) {
		writeError(w, http.StatusNotFound, "offer not found")
		return
	}
	if err != nil {
		s.warn("offer lookup failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "offer lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleOffersByObservation(w http.ResponseWriter, r *http.Request) {
	if s.repository == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	id := mux.Vars(r)["id"]
	offers, err := s.repository.ListByObservation(r.Context(), id)
	if err != nil {
		s.warn("offer listing failed", "observation", id, "error", err)
		writeError(w, http.StatusInternalServerError, "offer listing failed")
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Server) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
