package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"audioguide/internal/domain"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
	"github.com/google/uuid"
)

// MaxAudioSize caps narration uploads
const MaxAudioSize = 50 << 20

type uploadService struct {
	storage ObjectStorage
	logger  *logger.Logger
	newID   func() string
}

// NewUploadService creates the narration upload service
func NewUploadService(storage ObjectStorage, logger *logger.Logger) UploadService {
	return &uploadService{
		storage: storage,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// UploadAudio stores an mp3 under audio/<uuid>_<name> and returns its public URL
func (s *uploadService) UploadAudio(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*domain.UploadResult, error) {
	if s.storage == nil {
		return nil, errors.NewExternalError("File storage is not configured.", nil)
	}

	name := sanitizeFilename(filename)
	if name == "" || !strings.EqualFold(filepath.Ext(name), ".mp3") {
		return nil, errors.NewValidationError("Only MP3 files are allowed.", map[string]interface{}{"file": filename})
	}
	if contentType != "" && !isMP3ContentType(contentType) {
		return nil, errors.NewValidationError("Only MP3 files are allowed.", map[string]interface{}{"content_type": contentType})
	}
	if size > MaxAudioSize {
		return nil, errors.NewValidationError(fmt.Sprintf("File is too large. The limit is %d MB.", MaxAudioSize>>20), nil)
	}

	path := fmt.Sprintf("audio/%s_%s", s.newID(), name)
	if err := s.storage.Upload(ctx, path, "audio/mpeg", body); err != nil {
		s.logger.WithError(err).WithField("path", path).Error("Failed to upload audio")
		return nil, errors.NewExternalError("Upload failed. Please try again.", err)
	}

	return &domain.UploadResult{
		Path:    path,
		FileURL: s.storage.PublicURL(path),
	}, nil
}

func isMP3ContentType(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	return mediaType == "audio/mpeg" || mediaType == "audio/mp3"
}

// sanitizeFilename keeps the base name and replaces characters unsafe in object keys
func sanitizeFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
