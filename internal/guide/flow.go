package guide

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"audioguide/internal/domain"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
)

// State is a step of the visitor flow
type State string

const (
	StateRegistration State = "registration"
	StateLanguage     State = "language"
	StateArtifact     State = "artifact"
	StatePlaying      State = "playing"
	StateExpired      State = "expired"
)

var (
	// ErrWrongState is returned for an action the current step does not offer
	ErrWrongState = stderrors.New("action not available at this step")
	// ErrSessionExpired is returned for every action except Acknowledge once the grant ran out
	ErrSessionExpired = stderrors.New("session expired, acknowledge to continue")
	// ErrStaleLookup is returned when a lookup finished after the visitor moved on
	ErrStaleLookup = stderrors.New("lookup superseded")
)

// TrafficAPI counts guide page visits and reads the public counters
type TrafficAPI interface {
	RecordVisit(ctx context.Context) error
	Stats(ctx context.Context) (*domain.TrafficStats, error)
}

// GuideAPI is the part of the server the visitor flow calls
type GuideAPI interface {
	ListenRecorder
	TrafficAPI
	Register(ctx context.Context, fullName, phone string) (*domain.Session, error)
	LookupArtifact(ctx context.Context, code string) (*domain.Artifact, error)
}

// View is a read-only snapshot of the flow for rendering
type View struct {
	State    State
	Session  *domain.Session
	Language domain.Language

	ArtifactCode string
	Title        string
	Description  string
	AudioURL     string
	Playing      bool
	Position     time.Duration
	Counted      bool

	// Traffic is nil until the counters for this visit have loaded
	Traffic *domain.TrafficStats
}

// Flow drives one visitor through registration, language choice, artifact
// lookup and playback. Methods are safe to call from several goroutines;
// network calls run without the lock held.
type Flow struct {
	api     GuideAPI
	store   *SessionStore
	watcher *Watcher
	logger  *logger.Logger

	mu        sync.Mutex
	state     State
	session   *domain.Session
	language  domain.Language
	artifact  *domain.Artifact
	playback  *PlaybackSession
	playing   bool
	position  time.Duration
	lookupGen uint64
	traffic   *domain.TrafficStats

	// sessionCtx lives as long as the watcher of the current session
	sessionCtx context.Context
	stopWatch  context.CancelFunc
	onExpire   func()

	pending  sync.WaitGroup // listen and visit recordings
	watching sync.WaitGroup
}

// NewFlow creates a flow at the registration step
func NewFlow(api GuideAPI, store *SessionStore, watcher *Watcher, logger *logger.Logger) *Flow {
	return &Flow{
		api:      api,
		store:    store,
		watcher:  watcher,
		logger:   logger.Named("flow"),
		state:    StateRegistration,
		language: domain.DefaultLanguage,
	}
}

// OnExpire registers fn to run when the watcher expires the session
func (f *Flow) OnExpire(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onExpire = fn
}

// Resume restores a stored session and skips registration when one is found
func (f *Flow) Resume(ctx context.Context) (bool, error) {
	session, err := f.store.Load()
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if session == nil {
		f.state = StateRegistration
		return false, nil
	}
	f.enterSession(ctx, session)
	return true, nil
}

// Register validates the form, registers or resumes the visitor and moves on
// to language selection.
func (f *Flow) Register(ctx context.Context, fullName, phone string) (*domain.Session, error) {
	f.mu.Lock()
	if err := f.expect(StateRegistration); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()

	fullName = strings.TrimSpace(fullName)
	phone = strings.TrimSpace(phone)
	if fullName == "" || phone == "" {
		details := map[string]interface{}{}
		if fullName == "" {
			details["full_name"] = "required"
		}
		if phone == "" {
			details["phone_number"] = "required"
		}
		return nil, errors.NewValidationError("Please enter both your full name and phone number.", details)
	}

	session, err := f.api.Register(ctx, fullName, phone)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateRegistration {
		return nil, ErrStaleLookup
	}
	if err := f.store.Save(session); err != nil {
		f.logger.WithError(err).Warn("Failed to persist visitor session")
	}
	f.enterSession(ctx, session)
	return session, nil
}

// SelectLanguage picks the narration language and moves on to artifact entry
func (f *Flow) SelectLanguage(lang domain.Language) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expect(StateLanguage); err != nil {
		return err
	}
	if !lang.IsSupported() {
		return errors.NewValidationError("Please choose a supported language.", map[string]interface{}{"language": string(lang)})
	}
	f.language = lang
	f.state = StateArtifact
	return nil
}

// SubmitCode looks up an artifact by its typed or scanned code. A result that
// arrives after the visitor left the step, or after a newer lookup started, is
// discarded with ErrStaleLookup.
func (f *Flow) SubmitCode(ctx context.Context, code string) (*domain.Artifact, error) {
	code = domain.NormalizeCode(code)

	f.mu.Lock()
	if err := f.expect(StateArtifact); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if code == "" {
		f.mu.Unlock()
		return nil, errors.NewValidationError("Please enter an artifact code.", nil)
	}
	f.lookupGen++
	gen := f.lookupGen
	f.mu.Unlock()

	artifact, err := f.api.LookupArtifact(ctx, code)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.lookupGen || f.state != StateArtifact {
		f.logger.WithField("artifact_code", code).Debug("Discarding superseded lookup")
		return nil, ErrStaleLookup
	}
	if err != nil {
		return nil, err
	}

	f.artifact = artifact
	f.load()
	f.state = StatePlaying
	return artifact, nil
}

// Play starts or resumes playback. The first start after a load records a
// listen in the background.
func (f *Flow) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expect(StatePlaying); err != nil {
		return err
	}
	return f.start(ctx)
}

// Pause stops playback without ending the playback session
func (f *Flow) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expect(StatePlaying); err != nil {
		return err
	}
	f.playing = false
	return nil
}

// Seek moves the playhead
func (f *Flow) Seek(position time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expect(StatePlaying); err != nil {
		return err
	}
	if position < 0 {
		return errors.NewValidationError("Position cannot be negative.", nil)
	}
	f.position = position
	return nil
}

// Replay rewinds the narration and plays it. It stays in the current
// playback session, so a listen already counted is not counted again.
func (f *Flow) Replay(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expect(StatePlaying); err != nil {
		return err
	}
	f.position = 0
	return f.start(ctx)
}

// ChangeLanguage switches the narration language of the current artifact
func (f *Flow) ChangeLanguage(lang domain.Language) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.expect(StatePlaying); err != nil {
		return err
	}
	if !lang.IsSupported() {
		return errors.NewValidationError("Please choose a supported language.", map[string]interface{}{"language": string(lang)})
	}
	if lang == f.language {
		return nil
	}
	f.language = lang
	f.load()
	return nil
}

// Back returns to the previous step
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateExpired:
		return ErrSessionExpired
	case StatePlaying:
		f.unload()
		f.state = StateArtifact
	case StateArtifact:
		f.lookupGen++
		f.enterLanguage()
	default:
		return ErrWrongState
	}
	return nil
}

// Home returns to language selection
func (f *Flow) Home() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateExpired:
		return ErrSessionExpired
	case StateRegistration:
		return ErrWrongState
	}
	f.unload()
	f.lookupGen++
	f.enterLanguage()
	return nil
}

// Logout forgets the session and returns to registration
func (f *Flow) Logout() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateExpired {
		return ErrSessionExpired
	}
	return f.reset()
}

// Acknowledge dismisses the expiry notice, clearing the stored session
func (f *Flow) Acknowledge() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateExpired {
		return ErrWrongState
	}
	return f.reset()
}

// Snapshot returns what the visitor currently sees
func (f *Flow) Snapshot() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	view := View{
		State:    f.state,
		Session:  f.session,
		Language: f.language,
		Playing:  f.playing,
		Position: f.position,
		Traffic:  f.traffic,
	}
	if f.artifact != nil {
		view.ArtifactCode = f.artifact.ArtifactCode
		view.Title = f.artifact.TitleFor(f.language)
		view.Description = f.artifact.DescriptionFor(f.language)
		view.AudioURL, _ = f.artifact.AudioURLFor(f.language)
	}
	if f.playback != nil {
		view.Counted = f.playback.Counted()
	}
	return view
}

// Wait blocks until background listen and visit recordings have finished.
// It does not wait for the expiry watcher.
func (f *Flow) Wait() {
	f.pending.Wait()
}

// Close stops the watcher and waits for background work
func (f *Flow) Close() {
	f.mu.Lock()
	f.stopWatching()
	f.mu.Unlock()
	f.watching.Wait()
	f.pending.Wait()
}

func (f *Flow) expect(state State) error {
	if f.state == StateExpired {
		return ErrSessionExpired
	}
	if f.state != state {
		return ErrWrongState
	}
	return nil
}

// enterSession must be called with mu held
func (f *Flow) enterSession(ctx context.Context, session *domain.Session) {
	f.session = session
	f.traffic = nil
	f.stopWatching()

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.sessionCtx = watchCtx
	f.stopWatch = cancel
	watched := *session
	f.watching.Add(1)
	go func() {
		defer f.watching.Done()
		f.watcher.Run(watchCtx, &watched, func() { f.expire(watched.ID) })
	}()

	f.enterLanguage()
}

// enterLanguage shows language selection and counts a page visit in the
// background. Must be called with mu held.
func (f *Flow) enterLanguage() {
	f.state = StateLanguage
	if f.session == nil || f.sessionCtx == nil {
		return
	}

	ctx, sessionID := f.sessionCtx, f.session.ID
	f.pending.Add(1)
	go func() {
		defer f.pending.Done()
		f.recordVisit(ctx, sessionID)
	}()
}

func (f *Flow) recordVisit(ctx context.Context, sessionID string) {
	if err := f.api.RecordVisit(ctx); err != nil {
		f.logger.WithError(err).Warn("Failed to record visit")
	}

	stats, err := f.api.Stats(ctx)
	if err != nil {
		f.logger.WithError(err).Warn("Failed to load visit counters")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session != nil && f.session.ID == sessionID {
		f.traffic = stats
	}
}

// start begins playback of the loaded narration. Must be called with mu held.
func (f *Flow) start(ctx context.Context) error {
	if _, ok := f.artifact.AudioURLFor(f.language); !ok {
		return errors.NewNotFoundError("Narration is not available in this language.")
	}

	f.playing = true
	playback := f.playback
	recordCtx := context.WithoutCancel(ctx)
	f.pending.Add(1)
	go func() {
		defer f.pending.Done()
		playback.Started(recordCtx)
	}()
	return nil
}

func (f *Flow) expire(sessionID string) {
	f.mu.Lock()
	if f.session == nil || f.session.ID != sessionID || f.state == StateExpired {
		f.mu.Unlock()
		return
	}
	f.unload()
	f.lookupGen++
	f.state = StateExpired
	f.stopWatching()
	notify := f.onExpire
	f.mu.Unlock()

	f.logger.WithField("visitor_id", sessionID).Info("Visitor session expired")
	if notify != nil {
		notify()
	}
}

func (f *Flow) reset() error {
	f.stopWatching()
	f.unload()
	f.lookupGen++
	f.session = nil
	f.sessionCtx = nil
	f.traffic = nil
	f.state = StateRegistration
	return f.store.Clear()
}

func (f *Flow) stopWatching() {
	if f.stopWatch != nil {
		f.stopWatch()
		f.stopWatch = nil
	}
}

// load starts a fresh playback session for the current artifact and language
func (f *Flow) load() {
	f.playback = NewPlaybackSession(f.artifact.ID, f.language, f.api, f.logger)
	f.playing = false
	f.position = 0
}

func (f *Flow) unload() {
	f.artifact = nil
	f.playback = nil
	f.playing = false
	f.position = 0
}
