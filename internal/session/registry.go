package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRegistryClosed indicates the registry has been shut down.
var ErrRegistryClosed = errors.New("session registry is closed")

const (
	DefaultMaxSessions     = 100
	DefaultSessionTimeout  = time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

// RegistryConfig holds configuration for the session registry.
type RegistryConfig struct {
	// MaxSessions caps concurrently live sessions. Zero means the default.
	MaxSessions int

	// SessionTimeout is the idle time after which a session is evicted.
	SessionTimeout time.Duration

	// CleanupInterval is how often the eviction loop runs.
	CleanupInterval time.Duration

	// Limits apply to every session the registry creates.
	Limits Limits

	// Clock supplies the current time. Defaults to time.Now.
	Clock func() time.Time
}

func normalizeRegistryConfig(cfg RegistryConfig) RegistryConfig {
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return cfg
}

// Registry owns all live sessions, mapping session id to session. The map is
// guarded independently of the per-session locks, so lookup and eviction do
// not contend with reads or writes on unrelated sessions.
type Registry struct {
	config RegistryConfig

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewRegistry creates a registry and starts its eviction loop.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		config:      normalizeRegistryConfig(cfg),
		sessions:    make(map[string]*Session),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Create adds a new session with a generated id.
func (r *Registry) Create(title string) (*Session, error) {
	return r.create(uuid.NewString(), title)
}

// GetOrCreate returns the session with the given id, creating it on first
// reference.
func (r *Registry) GetOrCreate(id string) (*Session, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrRegistryClosed
	}
	if s, ok := r.sessions[id]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	return r.create(id, "")
}

func (r *Registry) create(id, title string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	if r.config.MaxSessions > 0 && len(r.sessions) >= r.config.MaxSessions {
		return nil, fmt.Errorf("%w: max %d sessions", ErrLimitExceeded, r.config.MaxSessions)
	}

	s := New(id, title, r.config.Limits, r.config.Clock())
	r.sessions[id] = s
	return s, nil
}

// Get returns the session with the given id, failing if it does not exist.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return s, nil
}

// Put inserts an externally built session, such as a merge result or one
// loaded from the archive.
func (r *Registry) Put(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if r.config.MaxSessions > 0 && len(r.sessions) >= r.config.MaxSessions {
		if _, exists := r.sessions[s.ID()]; !exists {
			return fmt.Errorf("%w: max %d sessions", ErrLimitExceeded, r.config.MaxSessions)
		}
	}
	r.sessions[s.ID()] = s
	return nil
}

// Delete removes a session. Fails if the id is unknown.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	return nil
}

// SessionLimits returns the per-session limits the registry applies.
func (r *Registry) SessionLimits() Limits {
	return r.config.Limits
}

// ListIDs returns the ids of all live sessions, sorted.
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EvictIdle removes sessions idle past the timeout, returning how many were
// evicted. Each candidate's exclusive lock is taken before removal so
// eviction cannot race an in-flight append.
func (r *Registry) EvictIdle() int {
	cutoff := r.config.Clock().Add(-r.config.SessionTimeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0
	}

	evicted := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		idle := s.meta.LastModified.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (r *Registry) cleanupLoop() {
	defer close(r.cleanupDone)

	timer := time.NewTimer(r.config.CleanupInterval)
	defer timer.Stop()

	for {
		select {
		case <-r.stopCleanup:
			return
		case <-timer.C:
			r.EvictIdle()
			timer.Reset(r.config.CleanupInterval)
		}
	}
}

// Close stops the eviction loop and rejects further operations.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	r.closed = true
	r.mu.Unlock()

	close(r.stopCleanup)
	<-r.cleanupDone
	return nil
}
