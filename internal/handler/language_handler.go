package handler

import (
	"net/http"

	"audioguide/internal/domain"
	"audioguide/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// LanguageHandler lists the narration languages
type LanguageHandler struct {
	logger *logger.Logger
}

// NewLanguageHandler creates a new language handler
func NewLanguageHandler(logger *logger.Logger) *LanguageHandler {
	return &LanguageHandler{logger: logger}
}

// LanguagesResponse is the picker payload
type LanguagesResponse struct {
	Languages []domain.LanguageInfo `json:"languages"`
	Preferred domain.Language       `json:"preferred"`
}

// RegisterRoutes registers language routes
func (h *LanguageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/languages", h.List)
}

// List handles GET /api/languages. Preferred is the best match for the
// browser's Accept-Language header.
func (h *LanguageHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, LanguagesResponse{
		Languages: domain.Languages(),
		Preferred: domain.PreferredLanguage(r.Header.Get("Accept-Language")),
	})
}
