package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"inkwell/internal/account"
	"inkwell/internal/admin"
	"inkwell/internal/analytics"
	"inkwell/internal/auth"
	"inkwell/internal/backend"
	"inkwell/internal/content"
	"inkwell/internal/editor"
	"inkwell/internal/platform/config"
	"inkwell/internal/platform/health"
	"inkwell/internal/platform/logger"
	"inkwell/internal/platform/metrics"
	"inkwell/internal/platform/redis"
	"inkwell/internal/platform/tracer"
	"inkwell/internal/session"
	httptransport "inkwell/internal/transport/http"
	"inkwell/internal/web"
	request "inkwell/pkg/platform/middleware/request"
)

// Room on top of the upload limit for the other form fields.
const formOverheadBytes = 1 << 20

const poolStatsInterval = 30 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	path, err := config.PathFromFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	log.Info("initializing inkwell",
		"addr", cfg.Server.Addr,
		"environment", cfg.Environment,
		"backend", cfg.Backend.BaseURL,
		"session_store", cfg.Session.Store,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	latency := request.NewMetrics(prometheus.DefaultRegisterer)
	probes := health.New(cfg.Environment)
	spans := tracer.NewOTel()

	client := backend.New(backend.Config{
		BaseURL:          cfg.Backend.BaseURL,
		Timeout:          cfg.Backend.Timeout,
		Observer:         m,
		Tracer:           spans,
		Logger:           log,
		FailureThreshold: cfg.Backend.FailureThreshold,
	})
	probes.RegisterCheck("backend", client.Health)

	renderer, err := web.NewRenderer(log)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	cookie := session.CookieOptions{
		Name:   cfg.Session.CookieName,
		MaxAge: cfg.Session.MaxAge,
		Secure: cfg.Session.Secure,
	}
	sessions := session.CookieFactory(cookie, session.NewSealer(cfg.Session.Key()))

	var redisClient *redis.Client
	if cfg.Session.Store == "redis" {
		redisClient, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close() //nolint:errcheck // process is exiting
		sessions = session.RedisFactory(redisClient, cookie)
		probes.RegisterCheck("redis", redisClient.Health)
		log.Info("sessions stored in redis")
	}

	editors := editor.NewManager(editor.WithObserver(m), editor.WithLogger(log))
	janitor, err := editor.NewJanitor(editors, cfg.Editor.IdleTTL,
		editor.WithSweepInterval(cfg.Editor.SweepInterval),
		editor.WithJanitorLogger(log),
	)
	if err != nil {
		return fmt.Errorf("editor janitor: %w", err)
	}

	stats := analytics.NewService(client, analytics.WithLogger(log), analytics.WithTracer(spans))
	handlers := httptransport.Handlers{
		Auth:      auth.NewHandler(client, renderer, log),
		Account:   account.NewHandler(client, renderer, log, cfg.Server.MaxUploadBytes),
		Content:   content.NewHandler(client, editors, renderer, m, log, cfg.Server.MaxUploadBytes),
		Editor:    editor.NewHandler(editors, client, log, cfg.Server.MaxUploadBytes),
		Admin:     admin.New(admin.NewService(client, stats, log), renderer, log),
		Analytics: analytics.NewHandler(stats, renderer, log),
		Health:    probes,
		Metrics:   promhttp.Handler(),
	}

	router, err := httptransport.NewRouter(httptransport.Config{
		Logger:   log,
		Renderer: renderer,
		Sessions: sessions,
		SessionListeners: []session.Listener{
			session.MetricsListener(m),
			session.LogListener(log),
		},
		FlashSealer:   session.NewSealer(cfg.Session.FlashKey()),
		CSRFKey:       cfg.CSRF.AuthKey(),
		CSRFSecure:    cfg.CSRF.Secure,
		GuardRecorder: m,
		Latency:       latency,
		Timeout:       cfg.Server.WriteTimeout,
		MaxBodyBytes:  cfg.Server.MaxUploadBytes + formOverheadBytes,
	}, handlers)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := janitor.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if redisClient != nil {
		g.Go(func() error {
			return redisClient.RecordPoolStatsEvery(gctx, poolStatsInterval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", slog.Any("error", err))
		return err
	}
	log.Info("server stopped")
	return nil
}
