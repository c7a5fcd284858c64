package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	dErrors "inkwell/pkg/domain-errors"
)

type EventKind string

const (
	LoggedIn  EventKind = "logged_in"
	LoggedOut EventKind = "logged_out"
	Updated   EventKind = "updated"
)

// Event carries the session snapshot after a change.
type Event struct {
	Kind    EventKind
	Session Session
}

// Listener is called synchronously after every published change.
type Listener func(ctx context.Context, e Event)

// Store owns the current session of one browser. All reads go through its
// accessors and all writes through Login, Update and Logout.
type Store struct {
	persister Persister
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	current  Session
	restored bool

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(persister Persister, opts ...Option) *Store {
	s := &Store{
		persister: persister,
		logger:    slog.Default(),
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns a copy of the session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *User {
	return s.Current().User
}

// IsAuthenticated reports whether a complete session is present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.complete()
}

func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.User != nil && s.current.User.Admin
}

// Restore loads the persisted session once. Anything unusable leaves the store
// empty: load errors, half sessions and expired tokens.
func (s *Store) Restore(ctx context.Context) {
	s.mu.Lock()
	if s.restored {
		s.mu.Unlock()
		return
	}
	s.restored = true
	s.mu.Unlock()

	loaded, stale, err := s.load(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "discarding persisted session", "error", err)
		// An expired or half session would otherwise be resent on every request.
		if stale {
			if clearErr := s.persister.Clear(ctx); clearErr != nil {
				s.logger.WarnContext(ctx, "failed to clear persisted session", "error", clearErr)
			}
		}
		return
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
}

// load reports stale when the stored value itself is unusable, as opposed to
// the storage failing.
func (s *Store) load(ctx context.Context) (loaded Session, stale bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			loaded, stale, err = Session{}, false, dErrors.New(dErrors.CodeMalformedResponse, "persisted session could not be read")
		}
	}()

	loaded, err = s.persister.Load(ctx)
	if err != nil {
		return Session{}, errors.Is(err, ErrStale), err
	}
	if loaded.IsZero() {
		return Session{}, false, nil
	}
	if !loaded.complete() {
		return Session{}, true, dErrors.New(dErrors.CodeMalformedResponse, "persisted session is incomplete")
	}
	if tokenExpired(loaded.Token, s.now()) {
		return Session{}, true, dErrors.New(dErrors.CodeUnauthorized, "persisted token has expired")
	}
	return loaded, false, nil
}

// Login persists and installs a new session. An empty token or missing user
// is rejected and the current session is left as it was.
func (s *Store) Login(ctx context.Context, token string, user *User) error {
	if token == "" || user == nil {
		return dErrors.New(dErrors.CodeValidation, "sign-in response is missing the token or the user")
	}
	next := Session{Token: token, User: user}.clone()
	save := s.persister.Save
	if r, ok := s.persister.(Rotator); ok {
		save = r.Rotate
	}
	if err := save(ctx, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not save the session")
	}

	s.mu.Lock()
	s.current = next
	s.restored = true
	s.mu.Unlock()

	s.publish(ctx, Event{Kind: LoggedIn, Session: next.clone()})
	return nil
}

// Update replaces the token, the user, or both, of a signed-in session. An
// empty token or nil user keeps the current value.
func (s *Store) Update(ctx context.Context, token string, user *User) error {
	s.mu.RLock()
	next := s.current.clone()
	s.mu.RUnlock()

	if !next.complete() {
		return dErrors.New(dErrors.CodeUnauthorized, "not signed in")
	}
	if token != "" {
		next.Token = token
	}
	if user != nil {
		u := *user
		next.User = &u
	}
	if err := s.persister.Save(ctx, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not save the session")
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	s.publish(ctx, Event{Kind: Updated, Session: next.clone()})
	return nil
}

// Logout clears durable storage and memory. Memory is cleared even when the
// persister fails; the persister error is still returned. Calling it while
// signed out does nothing visible.
func (s *Store) Logout(ctx context.Context) error {
	err := s.persister.Clear(ctx)

	s.mu.Lock()
	wasPresent := !s.current.IsZero()
	s.current = Session{}
	s.restored = true
	s.mu.Unlock()

	if wasPresent {
		s.publish(ctx, Event{Kind: LoggedOut})
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not clear the session")
	}
	return nil
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Store) publish(ctx context.Context, e Event) {
	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	// Subscription order.
	for i := 0; i < s.nextID; i++ {
		if l, ok := s.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(ctx, e)
	}
}
