package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// PersisterFactory builds the durable storage for one request.
type PersisterFactory func(w http.ResponseWriter, r *http.Request) Persister

// CookieFactory stores sessions in a sealed cookie.
func CookieFactory(opts CookieOptions, sealer *Sealer) PersisterFactory {
	return func(w http.ResponseWriter, r *http.Request) Persister {
		return NewCookiePersister(w, r, opts, sealer)
	}
}

// RedisFactory stores sessions in Redis keyed by a cookie id.
func RedisFactory(client redis.Cmdable, opts CookieOptions) PersisterFactory {
	return func(w http.ResponseWriter, r *http.Request) Persister {
		return NewRedisPersister(client, w, r, opts)
	}
}

type ctxKey struct{}

// WithStore attaches s to ctx.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request's store. Outside Middleware it returns an
// empty store whose writes go nowhere, so callers never check for nil.
func FromContext(ctx context.Context) *Store {
	if s, ok := ctx.Value(ctxKey{}).(*Store); ok {
		return s
	}
	return NewStore(discard{})
}

// Middleware restores the browser's session into a fresh Store for every
// request and subscribes the given listeners to it.
func Middleware(factory PersisterFactory, logger *slog.Logger, listeners ...Listener) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			store := NewStore(factory(w, r), WithLogger(logger))
			store.Restore(ctx)
			for _, l := range listeners {
				store.Subscribe(l)
			}
			next.ServeHTTP(w, r.WithContext(WithStore(ctx, store)))
		})
	}
}

type discard struct{}

func (discard) Load(context.Context) (Session, error) { return Session{}, nil }
func (discard) Save(context.Context, Session) error    { return nil }
func (discard) Clear(context.Context) error            { return nil }

// MemoryPersister keeps a session in memory. Tests use it in place of a browser.
type MemoryPersister struct {
	Stored  Session
	LoadErr error
	SaveErr error
}

func (m *MemoryPersister) Load(context.Context) (Session, error) {
	if m.LoadErr != nil {
		return Session{}, m.LoadErr
	}
	return m.Stored.clone(), nil
}

func (m *MemoryPersister) Save(_ context.Context, s Session) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Stored = s.clone()
	return nil
}

func (m *MemoryPersister) Clear(context.Context) error {
	m.Stored = Session{}
	return nil
}
