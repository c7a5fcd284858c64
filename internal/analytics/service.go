package analytics

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"inkwell/internal/backend"
	"inkwell/internal/platform/tracer"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/requestcontext"
)

type Backend interface {
	ListUsers(ctx context.Context, token string) ([]backend.User, error)
	ListContent(ctx context.Context, token string) ([]backend.Content, error)
}

// Service fetches both collections and aggregates them.
type Service struct {
	backend Backend
	now     func() time.Time
	logger  *slog.Logger
	tracer  tracer.Tracer
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func NewService(b Backend, opts ...Option) *Service {
	s := &Service{backend: b, now: time.Now, logger: slog.Default(), tracer: tracer.NewNoop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dashboard fetches users and content in parallel. If either request fails
// the whole view fails; no partial figures are returned. A collection the
// backend answered with a malformed body counts as empty.
func (s *Service) Dashboard(ctx context.Context, token string) (_ *Dashboard, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanAnalyticsFetch)
	defer func() { span.End(err) }()

	var (
		users []backend.User
		posts []backend.Content
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.backend.ListUsers(gctx, token)
		users, err = tolerate(gctx, s.logger, span, "users", users, err)
		return err
	})
	g.Go(func() error {
		var err error
		posts, err = s.backend.ListContent(gctx, token)
		posts, err = tolerate(gctx, s.logger, span, "content", posts, err)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		tracer.Int64(tracer.AttrUsers, int64(len(users))),
		tracer.Int64(tracer.AttrContent, int64(len(posts))),
	)

	d := Aggregate(users, posts, s.now())
	return &d, nil
}

func tolerate[T any](ctx context.Context, logger *slog.Logger, span tracer.Span, what string, items []T, err error) ([]T, error) {
	if dErrors.HasCode(err, dErrors.CodeMalformedResponse) {
		logger.WarnContext(ctx, "treating malformed collection as empty",
			"collection", what,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		span.AddEvent(tracer.EventMalformedCollection, tracer.String(tracer.AttrCollection, what))
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
