package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"audioguide/internal/domain"
	"audioguide/internal/repository"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
)

type artifactService struct {
	artifacts repository.ArtifactRepository
	cache     *CacheService
	logger    *logger.Logger
}

// NewArtifactService creates the artifact service. cache may be nil.
func NewArtifactService(artifacts repository.ArtifactRepository, cache *CacheService, logger *logger.Logger) ArtifactService {
	return &artifactService{
		artifacts: artifacts,
		cache:     cache,
		logger:    logger,
	}
}

// LookupByCode finds an artifact by code. Codes are matched after trimming and
// upper-casing, so "a123" finds "A123".
func (s *artifactService) LookupByCode(ctx context.Context, code string) (*domain.Artifact, error) {
	normalized := domain.NormalizeCode(code)
	if normalized == "" {
		return nil, errors.NewValidationError("Please enter an artifact code.", nil)
	}

	artifact, err := s.cache.GetArtifactWithCache(ctx, normalized, s.artifacts.GetByCode)
	if err != nil {
		s.logger.WithError(err).WithField("code", normalized).Error("Artifact lookup failed")
		return nil, errors.NewTransientError("Could not load the artifact. Please try again.", err)
	}
	if artifact == nil {
		return nil, errors.NewNotFoundError("Artifact not found. Please check the code and try again.")
	}

	return artifact, nil
}

// Get retrieves an artifact by ID
func (s *artifactService) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	if !isValidID(id) {
		return nil, errors.NewNotFoundError("Artifact not found")
	}

	artifact, err := s.artifacts.GetByID(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("artifact_id", id).Error("Failed to get artifact")
		return nil, errors.NewTransientError("Could not load the artifact.", err)
	}
	if artifact == nil {
		return nil, errors.NewNotFoundError("Artifact not found")
	}
	return artifact, nil
}

// List returns artifacts newest first
func (s *artifactService) List(ctx context.Context) ([]*domain.Artifact, error) {
	artifacts, err := s.artifacts.List(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list artifacts")
		return nil, errors.NewTransientError("Could not load artifacts.", err)
	}
	return artifacts, nil
}

// Create adds an artifact with empty listen counts
func (s *artifactService) Create(ctx context.Context, input *domain.ArtifactInput) (*domain.Artifact, error) {
	if input == nil {
		return nil, errors.NewValidationError("Artifact data is required.", nil)
	}
	input.Normalize()
	if input.ArtifactCode == "" {
		return nil, errors.NewValidationError("Artifact code is required.", map[string]interface{}{"artifact_code": "required"})
	}
	if err := validateLanguages(input); err != nil {
		return nil, err
	}

	artifact, err := s.artifacts.Create(ctx, input)
	if err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.NewConflictError(fmt.Sprintf("An artifact with code %s already exists.", input.ArtifactCode))
		}
		s.logger.WithError(err).WithField("code", input.ArtifactCode).Error("Failed to create artifact")
		return nil, errors.NewTransientError("Could not save the artifact. Please try again.", err)
	}

	s.cache.InvalidateArtifact(ctx, artifact.ArtifactCode)
	s.logger.WithFields(map[string]interface{}{
		"artifact_id": artifact.ID,
		"code":        artifact.ArtifactCode,
	}).Info("Artifact created")
	return artifact, nil
}

// Update rewrites the localized content and image. The code cannot change and
// listen counts are never written here.
func (s *artifactService) Update(ctx context.Context, id string, input *domain.ArtifactInput) (*domain.Artifact, error) {
	if input == nil {
		return nil, errors.NewValidationError("Artifact data is required.", nil)
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	input.Normalize()
	if input.ArtifactCode != "" && input.ArtifactCode != existing.ArtifactCode {
		return nil, errors.NewValidationError("Artifact code cannot be changed.", map[string]interface{}{"artifact_code": "immutable"})
	}
	input.ArtifactCode = existing.ArtifactCode
	if err := validateLanguages(input); err != nil {
		return nil, err
	}

	artifact, err := s.artifacts.Update(ctx, id, input)
	if err != nil {
		s.logger.WithError(err).WithField("artifact_id", id).Error("Failed to update artifact")
		return nil, errors.NewTransientError("Could not save the artifact. Please try again.", err)
	}
	if artifact == nil {
		return nil, errors.NewNotFoundError("Artifact not found")
	}

	s.cache.InvalidateArtifact(ctx, artifact.ArtifactCode)
	s.logger.WithField("artifact_id", id).Info("Artifact updated")
	return artifact, nil
}

// Delete removes an artifact
func (s *artifactService) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	found, err := s.artifacts.Delete(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("artifact_id", id).Error("Failed to delete artifact")
		return errors.NewTransientError("Could not delete the artifact. Please try again.", err)
	}
	if !found {
		return errors.NewNotFoundError("Artifact not found")
	}

	s.cache.InvalidateArtifact(ctx, existing.ArtifactCode)
	s.logger.WithFields(map[string]interface{}{
		"artifact_id": id,
		"code":        existing.ArtifactCode,
	}).Info("Artifact deleted")
	return nil
}

// Stats returns the listen statistics for one artifact
func (s *artifactService) Stats(ctx context.Context, id string) (*domain.ArtifactStats, error) {
	artifact, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return artifact.Stats(), nil
}

// validateLanguages rejects localized keys outside the supported set
func validateLanguages(input *domain.ArtifactInput) error {
	details := map[string]interface{}{}
	check := func(field string, values domain.Localized) {
		for code := range values {
			if !domain.Language(code).IsSupported() {
				details[field+"."+code] = "unsupported language"
			}
		}
	}
	check("title", input.Title)
	check("description", input.Description)
	check("audio_urls", input.AudioURLs)

	if len(details) > 0 {
		return errors.NewValidationError("Unsupported language in artifact content.", details)
	}
	return nil
}
