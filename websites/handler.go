package websites

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// CreateWebsiteHandler registers a new website and returns its id and
// admin API key.
func (m *Manager) CreateWebsiteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name           string   `json:"name"`
			Domain         string   `json:"domain"`
			AllowedOrigins []string `json:"allowed_origins"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "Name is required", http.StatusBadRequest)
			return
		}

		site, err := m.CreateWebsite(req.Name, req.Domain, req.AllowedOrigins)
		if err != nil {
			log.Error().Err(err).Str("name", req.Name).Msg("create website failed")
			http.Error(w, "Failed to create website", http.StatusInternalServerError)
			return
		}

		log.Info().Str("website_id", site.ID).Str("name", site.Name).Msg("website created")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(site); err != nil {
			log.Error().Err(err).Msg("encode create website response")
		}
	}
}

// ListWebsitesHandler returns every registered website.
func (m *Manager) ListWebsitesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.ListWebsites()); err != nil {
			log.Error().Err(err).Msg("encode website list")
		}
	}
}

// GetWebsiteHandler returns a single website by id.
func (m *Manager) GetWebsiteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site, err := m.GetWebsite(chi.URLParam(r, "websiteID"))
		if err != nil {
			http.Error(w, "Website not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(site); err != nil {
			log.Error().Err(err).Msg("encode website")
		}
	}
}

// DeleteWebsiteHandler removes a website from the registry.
func (m *Manager) DeleteWebsiteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "websiteID")
		if err := m.DeleteWebsite(id); err != nil {
			http.Error(w, "Website not found", http.StatusNotFound)
			return
		}
		log.Info().Str("website_id", id).Msg("website deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}
