package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	adhttp "github.com/Strob0t/answerdesk/internal/adapter/http"
	admcp "github.com/Strob0t/answerdesk/internal/adapter/mcp"
	cfotel "github.com/Strob0t/answerdesk/internal/adapter/otel"
	"github.com/Strob0t/answerdesk/internal/adapter/ws"
	"github.com/Strob0t/answerdesk/internal/config"
	"github.com/Strob0t/answerdesk/internal/logger"
	"github.com/Strob0t/answerdesk/internal/middleware"
)

const (
	shutdownTimeout   = 15 * time.Second
	backgroundTimeout = 2 * time.Minute
	resolvedRetention = 7 * 24 * time.Hour
	janitorInterval   = time.Hour
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"action_mode", cfg.Workflow.ActionMode,
		"knowledge_source", cfg.Knowledge.Source,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTEL, err := cfotel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	hub := ws.NewHub(originHosts(cfg.Server.CORSOrigin)...)
	defer hub.Close()

	app, err := buildApp(ctx, cfg, hub)
	if err != nil {
		return err
	}
	defer app.close()

	// --- HTTP ---
	runner := adhttp.NewRunner(backgroundTimeout)
	handlers := &adhttp.Handlers{
		Answers:    app.answers,
		Approvals:  app.approvals,
		Knowledge:  app.knowledge,
		EmailLinks: app.emailLinks,
		Checks:     app.checks,
		Background: runner,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst).
		Exempt("/health", "/ws")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(adhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(adhttp.SecurityHeaders)
	r.Use(adhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(limiter.Handler)

	r.Get("/ws", hub.HandleWS)
	if cfg.MCP.Enabled {
		mcpSrv := admcp.NewServer(admcp.ServerConfig{
			Name:    "answerdesk",
			Version: version,
			APIKey:  cfg.MCP.APIKey,
		}, admcp.ServerDeps{
			Answers:   app.answers,
			Approvals: app.approvals,
			Knowledge: app.knowledge,
		})
		r.Handle("/mcp", mcpSrv.Handler())
		slog.Info("mcp server enabled", "path", "/mcp", "auth", cfg.MCP.APIKey != "")
	}

	adhttp.MountRoutes(r, handlers, adhttp.RouteOptions{
		GitHubSecret:       cfg.Webhook.GitHubSecret,
		SlackSigningSecret: cfg.Slack.SigningSecret,
		IdempotencyStore:   app.idempotency,
		IdempotencyTTL:     cfg.NATS.IdempotencyTTL,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		runner.Wait()
		return err
	})

	g.Go(func() error {
		limiter.RunCleanup(gctx, 5*time.Minute, 10*time.Minute)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := app.approvals.PruneResolved(resolvedRetention); n > 0 {
					slog.Info("pruned resolved approvals", "count", n)
				}
			}
		}
	})

	if app.watch != nil {
		g.Go(func() error {
			if err := app.watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("knowledge watcher stopped", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// originHosts turns the CORS origin into websocket origin patterns.
func originHosts(origin string) []string {
	if origin == "" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
