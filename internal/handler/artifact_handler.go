package handler

import (
	"net/http"

	"audioguide/internal/domain"
	"audioguide/internal/service"
	"audioguide/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// ArtifactHandler serves the public artifact lookup used by the guide
type ArtifactHandler struct {
	artifacts service.ArtifactService
	listens   service.ListenService
	logger    *logger.Logger
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(artifacts service.ArtifactService, listens service.ListenService, logger *logger.Logger) *ArtifactHandler {
	return &ArtifactHandler{
		artifacts: artifacts,
		listens:   listens,
		logger:    logger,
	}
}

// PublicArtifact is what visitors see. Listen counts stay with staff.
type PublicArtifact struct {
	ID           string           `json:"id"`
	ArtifactCode string           `json:"artifact_code"`
	ImageURL     string           `json:"image_url"`
	Title        domain.Localized `json:"title"`
	Description  domain.Localized `json:"description"`
	AudioURLs    domain.Localized `json:"audio_urls"`
}

// ListenRequest is the body of a listen report
type ListenRequest struct {
	Language domain.Language `json:"language"`
}

// ListenResponse carries the count after the increment
type ListenResponse struct {
	ArtifactID string          `json:"artifact_id"`
	Language   domain.Language `json:"language"`
	Count      int64           `json:"count"`
}

// RegisterRoutes registers public artifact routes
func (h *ArtifactHandler) RegisterRoutes(r chi.Router) {
	r.Route("/artifacts", func(r chi.Router) {
		r.Get("/{code}", h.Lookup)
		r.Post("/{id}/listens", h.RecordListen)
	})
}

// Lookup handles GET /api/artifacts/{code}
func (h *ArtifactHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.artifacts.LookupByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toPublicArtifact(artifact))
}

// RecordListen handles POST /api/artifacts/{id}/listens
func (h *ArtifactHandler) RecordListen(w http.ResponseWriter, r *http.Request) {
	var req ListenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id := chi.URLParam(r, "id")
	count, err := h.listens.RecordListen(r.Context(), id, req.Language)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, ListenResponse{
		ArtifactID: id,
		Language:   req.Language,
		Count:      count,
	})
}

func toPublicArtifact(a *domain.Artifact) *PublicArtifact {
	return &PublicArtifact{
		ID:           a.ID,
		ArtifactCode: a.ArtifactCode,
		ImageURL:     a.ImageURL,
		Title:        a.Title,
		Description:  a.Description,
		AudioURLs:    a.AudioURLs,
	}
}
