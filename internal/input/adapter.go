package input

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mantonx/avinput/internal/avi"
	"github.com/mantonx/avinput/internal/config"
	"github.com/mantonx/avinput/internal/events"
	"github.com/mantonx/avinput/internal/logger"
)

// Adapter bridges the host plugin contract to the container service.
// It owns an arena of sessions keyed by opaque tokens; every call
// validates its token against the arena. The per-session read paths are
// not serialized, matching the host contract (the host drives calls
// from whatever thread it chooses).
type Adapter struct {
	service avi.Service
	bus     events.EventBus
	cfg     *config.Manager

	mu          sync.RWMutex
	sessions    map[Handle]*session
	initialized bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithEventBus wires session lifecycle events to the given bus.
func WithEventBus(bus events.EventBus) Option {
	return func(a *Adapter) { a.bus = bus }
}

// WithConfigManager sets the config manager Configure persists through.
func WithConfigManager(cfg *config.Manager) Option {
	return func(a *Adapter) { a.cfg = cfg }
}

// New creates an adapter over the given container service.
func New(service avi.Service, opts ...Option) *Adapter {
	a := &Adapter{
		service:  service,
		sessions: make(map[Handle]*session),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cfg == nil {
		a.cfg = config.GetManager()
	}
	return a
}

// Initialize starts the adapter. It must be called once before Open,
// at the host's plugin-loading boundary.
func (a *Adapter) Initialize() {
	a.mu.Lock()
	a.initialized = true
	a.mu.Unlock()
	a.publish(events.NewEvent(events.EventSystemStarted, "input-adapter", "Adapter initialized", ""))
}

// Shutdown stops the adapter after all sessions are closed. Sessions
// the host leaked are closed here and reported.
func (a *Adapter) Shutdown() {
	a.mu.Lock()
	leaked := a.sessions
	a.sessions = make(map[Handle]*session)
	a.initialized = false
	a.mu.Unlock()

	for handle, s := range leaked {
		logger.Warn("session %s leaked at shutdown (path=%s)", handle, s.path)
		s.release()
		a.publish(events.NewEvent(events.EventSessionLeaked, "input-adapter", "Session leaked", s.path))
	}
	a.publish(events.NewEvent(events.EventSystemStopped, "input-adapter", "Adapter shut down", ""))
}

// Open opens a container file and returns a session token. On failure
// no session exists and nothing is leaked: a partially opened service
// file is closed before returning.
func (a *Adapter) Open(path string) (Handle, error) {
	a.mu.RLock()
	initialized := a.initialized
	count := len(a.sessions)
	a.mu.RUnlock()

	if !initialized {
		return NilHandle, ErrNotInitialized
	}
	if max := a.cfg.Get().Adapter.MaxSessions; max > 0 && count >= max {
		return NilHandle, ErrTooManySessions
	}

	file, err := a.service.Open(path)
	if err != nil {
		return NilHandle, fmt.Errorf("input: open %s: %w", path, err)
	}

	s := &session{path: path, openedAt: time.Now(), file: file}
	s.classify()

	handle := Handle(uuid.NewString())
	a.mu.Lock()
	a.sessions[handle] = s
	a.mu.Unlock()

	logger.Debug("opened %s: video=%v audio=%v", path, s.flags.HasVideo(), s.flags.HasAudio())
	a.publish(events.NewSessionOpenedEvent(string(handle), path, s.flags.HasVideo(), s.flags.HasAudio()))
	return handle, nil
}

// Close releases the session's resources. It always reports success:
// a nil or unknown token is a no-op, per the host contract.
func (a *Adapter) Close(handle Handle) bool {
	if handle == NilHandle {
		return true
	}

	a.mu.Lock()
	s, ok := a.sessions[handle]
	if ok {
		delete(a.sessions, handle)
	}
	a.mu.Unlock()

	if ok {
		s.release()
		a.publish(events.NewSessionClosedEvent(string(handle)))
	}
	return true
}

// GetInfo returns the session's cached metadata. No service calls are
// made; everything was gathered at open time.
func (a *Adapter) GetInfo(handle Handle) (Info, error) {
	s, ok := a.lookup(handle)
	if !ok {
		return Info{}, ErrInvalidHandle
	}
	return s.info(), nil
}

// ReadVideoFrame reads one encoded frame into buf and returns the
// bytes written, 0 on any failure. This is the host-contract surface;
// VideoFrame carries the distinguishable errors.
func (a *Adapter) ReadVideoFrame(handle Handle, frame int, buf []byte) int {
	n, err := a.VideoFrame(handle, frame, buf)
	if err != nil {
		return 0
	}
	return n
}

// VideoFrame reads one encoded frame into buf using the two-phase
// size-then-read protocol. The caller sizes buf from GetInfo-derived
// limits; the adapter does not re-validate its capacity.
func (a *Adapter) VideoFrame(handle Handle, frame int, buf []byte) (int, error) {
	s, ok := a.lookup(handle)
	if !ok {
		return 0, ErrInvalidHandle
	}
	if !s.flags.HasVideo() {
		return 0, ErrNoVideoStream
	}

	size, err := s.video.FrameSize(frame)
	if err != nil {
		if errors.Is(err, avi.ErrStreamIndex) {
			return 0, ErrOutOfRange
		}
		return 0, fmt.Errorf("input: size frame %d: %w", frame, err)
	}
	if len(buf) > size {
		buf = buf[:size]
	}
	n, err := s.video.ReadFrame(frame, buf)
	if err != nil {
		return 0, fmt.Errorf("input: read frame %d: %w", frame, err)
	}
	return n, nil
}

// ReadAudioRange reads count samples starting at start into buf and
// returns the bytes written, 0 on any failure. This is the
// host-contract surface; AudioRange carries the distinguishable errors.
func (a *Adapter) ReadAudioRange(handle Handle, start, count int, buf []byte) int {
	n, err := a.AudioRange(handle, start, count, buf)
	if err != nil {
		return 0
	}
	return n
}

// AudioRange reads count samples starting at start into buf. The
// requested byte capacity is count times the block alignment from the
// session's cached audio format descriptor.
func (a *Adapter) AudioRange(handle Handle, start, count int, buf []byte) (int, error) {
	s, ok := a.lookup(handle)
	if !ok {
		return 0, ErrInvalidHandle
	}
	if !s.flags.HasAudio() {
		return 0, ErrNoAudioStream
	}
	if count <= 0 || start < 0 {
		return 0, ErrOutOfRange
	}

	want := count * s.blockAlign
	if len(buf) > want {
		buf = buf[:want]
	}
	n, err := s.audio.ReadSamples(start, buf)
	if err != nil {
		return 0, fmt.Errorf("input: read %d samples at %d: %w", count, start, err)
	}
	return n, nil
}

// Configure persists the adapter's settings through the config store so
// they survive plugin unload. It always reports success to the host; a
// persistence failure is logged, not surfaced.
func (a *Adapter) Configure() bool {
	if err := a.cfg.Save(); err != nil {
		logger.Warn("configure: persisting settings failed: %v", err)
	}
	return true
}

// Sessions reports the currently open session handles with their paths,
// for diagnostics.
func (a *Adapter) Sessions() map[Handle]string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[Handle]string, len(a.sessions))
	for handle, s := range a.sessions {
		out[handle] = s.path
	}
	return out
}

func (a *Adapter) lookup(handle Handle) (*session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[handle]
	return s, ok
}

func (a *Adapter) publish(event events.Event) {
	if a.bus != nil {
		a.bus.Publish(event)
	}
}
