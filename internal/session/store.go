// Package session holds the client's authentication state: the bearer token
// and the cached profile of its owner, persisted through a Backend so the
// session survives restarts.
//
// A Store is created once per process and handed to every component that
// needs it. The profile is never present without a token.
package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"

	"github.com/zeebo/blake3"

	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
	"github.com/felixgeelhaar/eventctl/internal/log"
	"github.com/felixgeelhaar/eventctl/internal/platform"
)

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Token   string
	User    *platform.User
	Loading bool
}

// HasToken reports whether a bearer credential is held.
func (s Snapshot) HasToken() bool {
	return s.Token != ""
}

// Role returns the profile role, or "" when no profile is cached.
func (s Snapshot) Role() string {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Store is the process-wide session. All methods are safe for concurrent use
// and every mutation writes through to the backend before it becomes visible.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	logger  *log.Logger

	token   string
	user    *platform.User
	loading bool

	loadOnce sync.Once
}

// NewStore creates an unhydrated store. A nil backend keeps the session in
// memory only.
func NewStore(backend Backend, logger *log.Logger) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Store{
		backend: backend,
		logger:  log.OrDefault(logger).WithGroup("session"),
		loading: true,
	}
}

// Load hydrates the store from the backend on first call and returns the
// resulting snapshot. It never fails: unreadable or inconsistent persisted
// data is discarded and treated as "no session".
func (s *Store) Load(ctx context.Context) Snapshot {
	s.loadOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.hydrate(ctx)
		s.loading = false
	})
	return s.Get()
}

func (s *Store) hydrate(ctx context.Context) {
	token, err := s.backend.Get(ctx, KeyToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "could not read persisted token", "error", err)
	}

	raw, err := s.backend.Get(ctx, KeyUser)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "could not read persisted profile", "error", err)
		raw = ""
	}

	s.token = token
	if raw == "" {
		s.logger.DebugContext(ctx, "session hydrated", "has_token", token != "", "token", Fingerprint(token))
		return
	}

	if token == "" {
		s.logger.WarnContext(ctx, "discarding persisted profile without a token")
		s.dropPersistedUser(ctx)
		return
	}

	var user platform.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.WarnContext(ctx, "discarding malformed persisted profile", "error", err)
		s.dropPersistedUser(ctx)
		return
	}
	s.user = &user

	s.logger.DebugContext(ctx, "session hydrated",
		"has_token", true,
		"token", Fingerprint(token),
		"email", user.Email,
		"role", user.Role,
	)
}

func (s *Store) dropPersistedUser(ctx context.Context) {
	if err := s.backend.Delete(ctx, KeyUser); err != nil {
		s.logger.WarnContext(ctx, "could not remove persisted profile", "error", err)
	}
}

// Get returns the current snapshot without side effects.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Token:   s.token,
		User:    copyUser(s.user),
		Loading: s.loading,
	}
}

// SetToken stores a new bearer token, replacing any prior one. A profile
// cached for a different token is dropped. An empty token clears the session.
func (s *Store) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != token && s.user != nil {
		if err := s.backend.Delete(ctx, KeyUser); err != nil {
			return apperrors.NewSessionPersistError(KeyUser, err)
		}
		s.user = nil
	}

	if err := s.backend.Set(ctx, KeyToken, token); err != nil {
		return apperrors.NewSessionPersistError(KeyToken, err)
	}
	s.token = token

	s.logger.DebugContext(ctx, "token stored", "token", Fingerprint(token))
	return nil
}

// SetUser stores the profile for the current token. It fails with
// NoActiveSession when no token is held.
func (s *Store) SetUser(ctx context.Context, user *platform.User) error {
	if user == nil {
		return s.ClearUser(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return apperrors.NewNoActiveSessionError("storing a profile")
	}
	return s.setUserLocked(ctx, user)
}

// SetUserIfToken stores the profile only if token is still the current one.
// It reports whether the profile was applied.
func (s *Store) SetUserIfToken(ctx context.Context, token string, user *platform.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" || s.token != token {
		s.logger.DebugContext(ctx, "discarding profile for a superseded token", "token", Fingerprint(token))
		return false, nil
	}
	if user == nil {
		return true, s.clearUserLocked(ctx)
	}
	if err := s.setUserLocked(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) setUserLocked(ctx context.Context, user *platform.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return apperrors.NewSessionPersistError(KeyUser, err)
	}
	if err := s.backend.Set(ctx, KeyUser, string(data)); err != nil {
		return apperrors.NewSessionPersistError(KeyUser, err)
	}
	s.user = copyUser(user)
	return nil
}

// ClearUser drops the cached profile and keeps the token.
func (s *Store) ClearUser(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearUserLocked(ctx)
}

func (s *Store) clearUserLocked(ctx context.Context) error {
	if err := s.backend.Delete(ctx, KeyUser); err != nil {
		return apperrors.NewSessionPersistError(KeyUser, err)
	}
	s.user = nil
	return nil
}

// Clear removes token and profile from memory and from the backend.
// Memory is always cleared; backend failures are returned. Calling Clear on
// an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hadToken := s.token != ""
	s.token = ""
	s.user = nil

	var errs []error
	if err := s.backend.Delete(ctx, KeyUser); err != nil {
		errs = append(errs, apperrors.NewSessionPersistError(KeyUser, err))
	}
	if err := s.backend.Delete(ctx, KeyToken); err != nil {
		errs = append(errs, apperrors.NewSessionPersistError(KeyToken, err))
	}

	if hadToken {
		s.logger.DebugContext(ctx, "session cleared")
	}
	return errors.Join(errs...)
}

// Fingerprint returns a short digest of token, safe to log.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

func copyUser(u *platform.User) *platform.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
