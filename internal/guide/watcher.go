package guide

import (
	"context"
	"time"

	"audioguide/internal/domain"
)

// WatchInterval is how often the watcher compares the grant to the clock
const WatchInterval = 15 * time.Second

// Watcher reports when a loaded session's grant runs out
type Watcher struct {
	interval time.Duration
	now      func() time.Time
}

// NewWatcher creates a watcher polling at interval, or WatchInterval when zero
func NewWatcher(interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = WatchInterval
	}
	return &Watcher{interval: interval, now: time.Now}
}

// Run blocks until the session expires or ctx is done. onExpired is called at
// most once, after which polling stops. A session without an expiry only
// returns on ctx.
func (w *Watcher) Run(ctx context.Context, session *domain.Session, onExpired func()) {
	if session == nil {
		return
	}
	if session.Expired(w.now()) {
		onExpired()
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if session.Expired(w.now()) {
				onExpired()
				return
			}
		}
	}
}
