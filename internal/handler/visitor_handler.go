package handler

import (
	"net/http"
	"strconv"

	"audioguide/internal/domain"
	"audioguide/internal/middleware"
	"audioguide/internal/service"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// VisitorHandler handles visitor registration and traffic HTTP requests
type VisitorHandler struct {
	registry        service.RegistryService
	traffic         service.TrafficService
	registerLimiter *service.RateLimiter
	logger          *logger.Logger
}

// NewVisitorHandler creates a new visitor handler. traffic and registerLimiter
// may be nil when Redis is not configured.
func NewVisitorHandler(registry service.RegistryService, traffic service.TrafficService, registerLimiter *service.RateLimiter, logger *logger.Logger) *VisitorHandler {
	return &VisitorHandler{
		registry:        registry,
		traffic:         traffic,
		registerLimiter: registerLimiter,
		logger:          logger,
	}
}

// VisitResponse represents the response for visit recording
type VisitResponse struct {
	Success   bool                  `json:"success"`
	Message   string                `json:"message"`
	RateLimit *domain.RateLimitInfo `json:"rate_limit,omitempty"`
}

// RegisterRoutes registers visitor routes
func (h *VisitorHandler) RegisterRoutes(r chi.Router) {
	r.Route("/visitors", func(r chi.Router) {
		r.With(middleware.RateLimit(h.registerLimiter, h.logger)).Post("/register", h.Register)
		r.Post("/visit", h.RecordVisit)
		r.Get("/stats", h.GetStats)
	})
}

// Register handles POST /api/visitors/register
func (h *VisitorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	visitor, err := h.registry.RegisterOrResume(r.Context(), req.FullName, req.PhoneNumber)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session := visitor.Session()
	if h.traffic != nil {
		if err := h.traffic.TouchSession(r.Context(), session); err != nil {
			h.logger.WithError(err).WithField("visitor_id", visitor.ID).Warn("Failed to mark session active")
		}
	}

	writeJSON(w, h.logger, http.StatusOK, session)
}

// RecordVisit handles POST /api/visitors/visit
func (h *VisitorHandler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	if h.traffic == nil {
		writeError(w, r, h.logger, errors.NewTransientError("Traffic tracking is unavailable.", nil))
		return
	}

	ipAddress := middleware.ClientIP(r)
	rateLimitInfo, err := h.traffic.RecordVisit(r.Context(), ipAddress, r.UserAgent())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.setRateLimitHeaders(w, rateLimitInfo)
	w.Header().Set("Content-Type", "application/json")

	response := VisitResponse{
		Success:   true,
		Message:   "Visit recorded successfully",
		RateLimit: rateLimitInfo,
	}
	status := http.StatusOK
	if !rateLimitInfo.IsAllowed {
		response.Success = false
		response.Message = "Rate limit exceeded. Please try again later."
		status = http.StatusTooManyRequests
	}

	w.WriteHeader(status)
	if err := encode(w, response); err != nil {
		h.logger.WithError(err).Error("Failed to encode visit response")
	}
}

// GetStats handles GET /api/visitors/stats
func (h *VisitorHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.traffic == nil {
		writeError(w, r, h.logger, errors.NewTransientError("Traffic tracking is unavailable.", nil))
		return
	}

	stats, err := h.traffic.GetStats(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, stats)
}

func (h *VisitorHandler) setRateLimitHeaders(w http.ResponseWriter, info *domain.RateLimitInfo) {
	remaining := info.Limit - info.RequestCount
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(info.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.WindowStart.Add(info.TTL).Unix(), 10))
}
