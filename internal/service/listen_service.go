package service

import (
	"context"

	"audioguide/internal/domain"
	"audioguide/internal/repository"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
)

type listenService struct {
	artifacts repository.ArtifactRepository
	logger    *logger.Logger
}

// NewListenService creates the listen counter
func NewListenService(artifacts repository.ArtifactRepository, logger *logger.Logger) ListenService {
	return &listenService{artifacts: artifacts, logger: logger}
}

// RecordListen increments listen_counts[lang] with a single atomic update.
// Expiry of the visitor's grant is not checked here.
func (s *listenService) RecordListen(ctx context.Context, artifactID string, lang domain.Language) (int64, error) {
	if !lang.IsSupported() {
		return 0, errors.NewValidationError("Unsupported language.", map[string]interface{}{"language": string(lang)})
	}
	if !isValidID(artifactID) {
		return 0, errors.NewNotFoundError("Artifact not found")
	}

	count, found, err := s.artifacts.IncrementListenCount(ctx, artifactID, string(lang))
	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"artifact_id": artifactID,
			"language":    lang,
		}).Error("Failed to record listen")
		return 0, errors.NewTransientError("Could not record the listen.", err)
	}
	if !found {
		return 0, errors.NewNotFoundError("Artifact not found")
	}

	s.logger.WithFields(map[string]interface{}{
		"artifact_id": artifactID,
		"language":    lang,
		"count":       count,
	}).Debug("Listen recorded")
	return count, nil
}
