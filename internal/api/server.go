package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docbridge/docbridge/config"
	"github.com/docbridge/docbridge/internal/backend"
	"github.com/docbridge/docbridge/internal/mirror"
)

// Server represents the API server
type Server struct {
	mirror *mirror.Mirror
	config *config.Config
}

// NewServer creates a new API server
func NewServer(m *mirror.Mirror, cfg *config.Config) *Server {
	return &Server{
		mirror: m,
		config: cfg,
	}
}

// Router setups the API routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/search", s.handleSearch)
	r.Get("/mappings", s.handleMappings)
	r.Get("/models", s.handleListModels)
	r.Get("/models/{model}/status", s.handleModelStatus)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	return r
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var searchReq struct {
		Query map[string]interface{} `json:"query"`
	}

	if err := json.NewDecoder(r.Body).Decode(&searchReq); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if !mirror.ValidSettings(searchReq.Query) {
		http.Error(w, "query must be an object", http.StatusBadRequest)
		return
	}

	result, err := s.mirror.Search(r.Context(), searchReq.Query)
	if err != nil {
		if backend.IsNotFound(err) {
			http.Error(w, "index not found", http.StatusNotFound)
			return
		}
		log.Printf("Search error: %v", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	response(w, http.StatusOK, result)
}

func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	response(w, http.StatusOK, map[string]interface{}{
		"index":    s.config.Index.Name,
		"mappings": s.mirror.Mappings(),
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	all := s.mirror.Stats().All()
	models := make([]interface{}, 0, len(all))
	for _, st := range all {
		models = append(models, st)
	}

	response(w, http.StatusOK, map[string]interface{}{
		"models": models,
		"total":  len(models),
	})
}

func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	if model == "" {
		http.Error(w, "model parameter is required", http.StatusBadRequest)
		return
	}

	st, ok := s.mirror.Stats().Get(model)
	if !ok {
		http.Error(w, "model not registered", http.StatusNotFound)
		return
	}

	response(w, http.StatusOK, map[string]interface{}{
		"service": "docbridge",
		"status":  "running",
		"model":   st,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Simple health check
	response(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		http.Error(w, "mirror not initialized", http.StatusServiceUnavailable)
		return
	}

	// The mirror is ready once a search against its default index works.
	if _, err := s.mirror.Search(r.Context(), map[string]interface{}{"match_all": map[string]interface{}{}}); err != nil {
		log.Printf("Readiness check failed: %v", err)
		http.Error(w, "search backend not ready", http.StatusServiceUnavailable)
		return
	}

	response(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": map[string]string{
			"mirror":  "ok",
			"backend": "ok",
		},
	})
}

func response(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Unable to encode response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
