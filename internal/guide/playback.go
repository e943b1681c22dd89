package guide

import (
	"context"
	"sync"

	"audioguide/internal/domain"
	"audioguide/pkg/logger"
)

// ListenRecorder reports a narration play to the server
type ListenRecorder interface {
	RecordListen(ctx context.Context, artifactID string, lang domain.Language) (int64, error)
}

// PlaybackSession is one load of one narration. It counts at most one listen
// no matter how often playback is paused, resumed or seeked.
type PlaybackSession struct {
	ArtifactID string
	Language   domain.Language

	recorder ListenRecorder
	logger   *logger.Logger

	mu      sync.Mutex
	counted bool
}

// NewPlaybackSession starts a fresh playback session with its latch open
func NewPlaybackSession(artifactID string, lang domain.Language, recorder ListenRecorder, logger *logger.Logger) *PlaybackSession {
	return &PlaybackSession{
		ArtifactID: artifactID,
		Language:   lang,
		recorder:   recorder,
		logger:     logger,
	}
}

// Started is called on every play event. Only the first call records a
// listen; failures are logged and dropped. It reports whether this call was
// the counted one.
func (p *PlaybackSession) Started(ctx context.Context) bool {
	p.mu.Lock()
	if p.counted {
		p.mu.Unlock()
		return false
	}
	p.counted = true
	p.mu.Unlock()

	count, err := p.recorder.RecordListen(ctx, p.ArtifactID, p.Language)
	log := p.logger.WithFields(map[string]interface{}{
		"artifact_id": p.ArtifactID,
		"language":    p.Language,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to record listen")
		return true
	}

	log.WithField("count", count).Debug("Listen recorded")
	return true
}

// Counted reports whether the latch has fired
func (p *PlaybackSession) Counted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counted
}
