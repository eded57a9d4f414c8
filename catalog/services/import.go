package services

import (
	"fmt"
	"net/http"
	"songxs_platform/catalog/auth"
	"songxs_platform/catalog/enrichment"
	"songxs_platform/catalog/ingest"
	"songxs_platform/utils"

	"github.com/go-chi/chi/v5"
)

const maxIsrcBatchSize = 500

type ImportService struct {
	pipeline *ingest.Pipeline
	userAuth auth.IdentityProvider
}

func (s *ImportService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/playlist", s.Playlist)
	r.Post("/isrcs", s.Isrcs)

	return r
}

type playlistImportRequest struct {
	Playlist  string `json:"playlist"`
	FetchMode string `json:"fetch_mode"`
}

func (s *ImportService) Playlist(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params playlistImportRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Playlist == "" {
		http.Error(w, "playlist url or id is required", http.StatusUnprocessableEntity)
		return
	}

	policy, err := enrichment.ParseFetchPolicy(params.FetchMode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	report, err := s.pipeline.IngestPlaylist(r.Context(), params.Playlist, user.Id, policy)
	if err != nil {
		http.Error(w, fmt.Sprintf("playlist import failed: %v", err), http.StatusBadGateway)
		return
	}

	utils.WriteJsonResponse(w, report)
}

type isrcImportRequest struct {
	Isrcs     []string `json:"isrcs"`
	FetchMode string   `json:"fetch_mode"`
}

func (s *ImportService) Isrcs(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params isrcImportRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if len(params.Isrcs) == 0 {
		http.Error(w, "at least one isrc is required", http.StatusUnprocessableEntity)
		return
	}
	if len(params.Isrcs) > maxIsrcBatchSize {
		http.Error(w, fmt.Sprintf("at most %d isrcs may be imported per request", maxIsrcBatchSize), http.StatusUnprocessableEntity)
		return
	}

	policy, err := enrichment.ParseFetchPolicy(params.FetchMode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	report := s.pipeline.IngestISRCs(r.Context(), params.Isrcs, user.Id, policy)
	utils.WriteJsonResponse(w, report)
}
