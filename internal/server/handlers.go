package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/queelius/arkiv/internal/archive"
	"github.com/queelius/arkiv/pkg/types"
)

// maxQueryBody bounds the size of a query request.
const maxQueryBody = 1 << 20

type queryRequest struct {
	SQL string `json:"sql"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	m, err := archive.BuildManifest(r.Context(), s.store)
	if err != nil {
		s.logger.Error("manifest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.store.Schemas(r.Context())
	if err != nil {
		s.logger.Error("schema listing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, schemas)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	schema, err := s.store.GetSchema(r.Context(), collection)
	if errors.Is(err, types.ErrCollectionNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("schema lookup failed", zap.String("collection", collection), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, schema)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("sql", req.SQL))

	rows, err := s.store.Query(r.Context(), req.SQL)
	if err != nil {
		// Rejected and malformed statements both map to 400.
		s.logger.Debug("query rejected", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rows)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
