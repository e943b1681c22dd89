package handler

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"audioguide/internal/domain"
	"audioguide/internal/middleware"
	"audioguide/internal/service"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of an upload is buffered before spilling to disk
const multipartMemory = 8 << 20

// AdminHandler serves the staff directory: artifacts, visitors, accounts and uploads
type AdminHandler struct {
	auth      service.AuthService
	artifacts service.ArtifactService
	registry  service.RegistryService
	staff     service.StaffService
	uploads   service.UploadService
	logger    *logger.Logger
	now       func() time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(services *service.Services, logger *logger.Logger) *AdminHandler {
	return &AdminHandler{
		auth:      services.Auth,
		artifacts: services.Artifact,
		registry:  services.Registry,
		staff:     services.Staff,
		uploads:   services.Upload,
		logger:    logger,
		now:       time.Now,
	}
}

// AdminVisitor adds the derived access badge to a visitor row
type AdminVisitor struct {
	*domain.Visitor
	AccessState domain.AccessState `json:"access_state"`
}

// RegisterRoutes registers the /admin routes behind staff authentication
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(h.auth, h.logger))

		r.Route("/artifacts", func(r chi.Router) {
			r.Get("/", h.ListArtifacts)
			r.Post("/", h.CreateArtifact)
			r.Get("/{id}", h.GetArtifact)
			r.Put("/{id}", h.UpdateArtifact)
			r.Delete("/{id}", h.DeleteArtifact)
			r.Get("/{id}/stats", h.ArtifactStats)
		})

		r.Route("/visitors", func(r chi.Router) {
			r.Get("/", h.ListVisitors)
			r.Post("/{id}/reactivate", h.ReactivateVisitor)
			r.Post("/{id}/deactivate", h.DeactivateVisitor)
		})

		r.Post("/users", h.ProvisionStaff)
		r.Post("/upload", h.UploadAudio)
	})
}

// ListArtifacts handles GET /admin/artifacts
func (h *AdminHandler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.artifacts.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, artifacts)
}

// CreateArtifact handles POST /admin/artifacts
func (h *AdminHandler) CreateArtifact(w http.ResponseWriter, r *http.Request) {
	input, err := decodeArtifactInput(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	artifact, err := h.artifacts.Create(r.Context(), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.audit(r, "artifact_created", artifact.ID)
	writeJSON(w, h.logger, http.StatusCreated, artifact)
}

// GetArtifact handles GET /admin/artifacts/{id}. With ?view=form the artifact
// is returned as flat per-language fields for the edit form.
func (h *AdminHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.artifacts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if r.URL.Query().Get("view") == "form" {
		writeJSON(w, h.logger, http.StatusOK, domain.FormFromArtifact(artifact))
		return
	}
	writeJSON(w, h.logger, http.StatusOK, artifact)
}

// UpdateArtifact handles PUT /admin/artifacts/{id}
func (h *AdminHandler) UpdateArtifact(w http.ResponseWriter, r *http.Request) {
	input, err := decodeArtifactInput(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	artifact, err := h.artifacts.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.audit(r, "artifact_updated", artifact.ID)
	writeJSON(w, h.logger, http.StatusOK, artifact)
}

// DeleteArtifact handles DELETE /admin/artifacts/{id}
func (h *AdminHandler) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.artifacts.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.audit(r, "artifact_deleted", id)
	writeJSON(w, h.logger, http.StatusOK, nil)
}

// ArtifactStats handles GET /admin/artifacts/{id}/stats
func (h *AdminHandler) ArtifactStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.artifacts.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

// ListVisitors handles GET /admin/visitors?q=
func (h *AdminHandler) ListVisitors(w http.ResponseWriter, r *http.Request) {
	visitors, err := h.registry.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	now := h.now()
	rows := make([]AdminVisitor, 0, len(visitors))
	for _, v := range visitors {
		rows = append(rows, AdminVisitor{Visitor: v, AccessState: v.AccessState(now)})
	}
	writeJSON(w, h.logger, http.StatusOK, rows)
}

// ReactivateVisitor handles POST /admin/visitors/{id}/reactivate
func (h *AdminHandler) ReactivateVisitor(w http.ResponseWriter, r *http.Request) {
	visitor, err := h.registry.Reactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.audit(r, "visitor_reactivated", visitor.ID)
	writeJSON(w, h.logger, http.StatusOK, AdminVisitor{Visitor: visitor, AccessState: visitor.AccessState(h.now())})
}

// DeactivateVisitor handles POST /admin/visitors/{id}/deactivate
func (h *AdminHandler) DeactivateVisitor(w http.ResponseWriter, r *http.Request) {
	visitor, err := h.registry.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.audit(r, "visitor_deactivated", visitor.ID)
	writeJSON(w, h.logger, http.StatusOK, AdminVisitor{Visitor: visitor, AccessState: visitor.AccessState(h.now())})
}

// ProvisionStaff handles POST /admin/users
func (h *AdminHandler) ProvisionStaff(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.staff.Provision(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.audit(r, "staff_provisioned", user.ID)
	writeJSON(w, h.logger, http.StatusCreated, user)
}

// UploadAudio handles POST /admin/upload with a multipart "file" field
func (h *AdminHandler) UploadAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxAudioSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			writeError(w, r, h.logger, errors.NewValidationError(fmt.Sprintf("File is too large. The limit is %d MB.", service.MaxAudioSize>>20), nil))
			return
		}
		writeError(w, r, h.logger, errors.NewValidationError("Invalid upload form.", nil))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.logger, errors.NewValidationError("A file is required.", map[string]interface{}{"field": "file"}))
		return
	}
	defer file.Close()

	result, err := h.uploads.UploadAudio(r.Context(), header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.audit(r, "audio_uploaded", result.Path)
	writeJSON(w, h.logger, http.StatusCreated, result)
}

func (h *AdminHandler) audit(r *http.Request, action, target string) {
	fields := map[string]interface{}{
		"action":     action,
		"target":     target,
		"request_id": middleware.GetRequestID(r.Context()),
	}
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		fields["staff_id"] = claims.Sub
	}
	h.logger.WithFields(fields).Info("Admin action")
}

// decodeArtifactInput accepts the nested JSON shape or a flat form post
func decodeArtifactInput(w http.ResponseWriter, r *http.Request) (*domain.ArtifactInput, error) {
	if isFormPost(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, errors.NewValidationError("Invalid form submission.", nil)
		}
		return domain.ArtifactFormFrom(r.PostFormValue).ToInput(), nil
	}

	var input domain.ArtifactInput
	if err := decodeJSON(w, r, &input); err != nil {
		return nil, err
	}
	return &input, nil
}
