package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/answerdesk/internal/adapter/email"
	"github.com/Strob0t/answerdesk/internal/adapter/github"
	adhttp "github.com/Strob0t/answerdesk/internal/adapter/http"
	"github.com/Strob0t/answerdesk/internal/adapter/litellm"
	"github.com/Strob0t/answerdesk/internal/adapter/memory"
	adnats "github.com/Strob0t/answerdesk/internal/adapter/nats"
	"github.com/Strob0t/answerdesk/internal/adapter/natskv"
	cfotel "github.com/Strob0t/answerdesk/internal/adapter/otel"
	"github.com/Strob0t/answerdesk/internal/adapter/postgres"
	"github.com/Strob0t/answerdesk/internal/adapter/ristretto"
	"github.com/Strob0t/answerdesk/internal/adapter/slack"
	"github.com/Strob0t/answerdesk/internal/adapter/tiered"
	"github.com/Strob0t/answerdesk/internal/adapter/ws"
	"github.com/Strob0t/answerdesk/internal/adapter/yamlkb"
	"github.com/Strob0t/answerdesk/internal/config"
	"github.com/Strob0t/answerdesk/internal/domain/match"
	"github.com/Strob0t/answerdesk/internal/port/audit"
	"github.com/Strob0t/answerdesk/internal/port/cache"
	"github.com/Strob0t/answerdesk/internal/port/generator"
	"github.com/Strob0t/answerdesk/internal/port/knowledge"
	"github.com/Strob0t/answerdesk/internal/port/messagequeue"
	"github.com/Strob0t/answerdesk/internal/port/notifier"
	"github.com/Strob0t/answerdesk/internal/port/publisher"
	"github.com/Strob0t/answerdesk/internal/resilience"
	"github.com/Strob0t/answerdesk/internal/service"
)

var version = "dev"

// app is the wired dependency graph of a running server.
type app struct {
	answers     *service.AnswerService
	approvals   *service.ApprovalService
	knowledge   knowledge.Source
	emailLinks  *email.LinkSigner
	idempotency cache.Cache
	checks      []adhttp.HealthCheck
	watch       func(context.Context) error

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, hub *ws.Hub) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	var pool *pgxpool.Pool
	if cfg.Postgres.DSN != "" {
		pool, err = postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.Migrate(ctx, cfg.Postgres.DSN); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")
	}

	var queue *adnats.Queue
	if cfg.NATS.URL != "" {
		queue, err = adnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		})
		slog.Info("nats connected", "url", cfg.NATS.URL)
	}

	published, err := buildPublishedCache(ctx, cfg, queue)
	if err != nil {
		return nil, err
	}
	a.idempotency, err = buildIdempotencyStore(ctx, cfg, queue)
	if err != nil {
		return nil, err
	}

	// --- Knowledge base ---

	switch cfg.Knowledge.Source {
	case "postgres":
		a.knowledge = postgres.NewStore(pool)
	default:
		src, err := yamlkb.Open(cfg.Knowledge.Path)
		if err != nil {
			return nil, fmt.Errorf("knowledge base: %w", err)
		}
		a.knowledge = src
		if cfg.Knowledge.Watch {
			a.watch = src.Watch
		}
	}

	// --- Outbound adapters ---

	breaker := func(name string) *resilience.Breaker {
		return resilience.NewBreaker(name, cfg.Breaker.MaxFailures, cfg.Breaker.Timeout,
			resilience.WithOnStateChange(func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
			}))
	}

	pubs := []publisher.Publisher{ws.NewPublisher(hub)}
	if cfg.GitHub.Token != "" {
		gh := github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.Token)
		gh.SetBreaker(breaker("github"))
		pubs = append(pubs, github.NewPublisher(gh))
	}
	if cfg.Slack.BotToken != "" {
		sc := slack.NewClient(cfg.Slack.APIURL, cfg.Slack.BotToken)
		sc.SetBreaker(breaker("slack"))
		pubs = append(pubs, slack.NewPublisher(sc))
	}

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		return nil, err
	}
	if es := cfg.Notify.Providers["email"]["link_secret"]; es != "" {
		a.emailLinks = email.NewLinkSigner(es)
	}

	var gen generator.Generator
	var llm *litellm.Client
	if cfg.Generator.Enabled {
		llm = litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.Timeout)
		llm.SetBreaker(breaker("litellm"))
		gen = litellm.NewGenerator(llm, cfg.LiteLLM.Model, cfg.LiteLLM.MaxTokens)
	}

	var auditStore audit.Store = memory.NewAuditStore()
	if pool != nil {
		auditStore = postgres.NewStore(pool)
	}

	// --- Services ---

	settings, err := cfg.WorkflowSettings()
	if err != nil {
		return nil, err
	}

	var mq messagequeue.Queue
	if queue != nil {
		mq = queue
	}
	events := service.NewEventEmitter(mq, hub)
	tracker := service.NewApprovalTracker()
	publish := service.NewPublishService(published, cfg.Cache.PublishedTTL, events, metrics, pubs...)
	notify := service.NewNotificationService(metrics, notifiers...)
	dispatcher := service.NewDispatcher(publish, tracker, notify, events, metrics)
	synth := service.NewSynthesizer(gen, cfg.Generator.FallbackOnError)

	a.answers = service.NewAnswerService(a.knowledge, match.NewMatcher(nil), synth, dispatcher, settings, events, metrics)
	a.approvals = service.NewApprovalService(tracker, publish, auditStore, events, metrics)

	if queue != nil {
		cancel, err := a.approvals.SubscribeDecisions(ctx, queue)
		if err != nil {
			return nil, fmt.Errorf("decision subscriber: %w", err)
		}
		a.closers = append(a.closers, cancel)
	}

	// --- Health ---

	a.checks = append(a.checks, adhttp.HealthCheck{Name: "knowledge", Check: func(ctx context.Context) error {
		_, err := a.knowledge.Snapshot(ctx)
		return err
	}})
	if pool != nil {
		a.checks = append(a.checks, adhttp.HealthCheck{Name: "postgres", Check: pool.Ping})
	}
	if queue != nil {
		a.checks = append(a.checks, adhttp.HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !queue.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}
	if llm != nil {
		a.checks = append(a.checks, adhttp.HealthCheck{Name: "litellm", Check: func(ctx context.Context) error {
			_, err := llm.Health(ctx)
			return err
		}})
	}

	slog.Info("services wired",
		"publishers", len(pubs),
		"notifiers", len(notifiers),
		"generator", gen != nil,
		"mode", settings.ActionMode,
	)
	return a, nil
}

// buildPublishedCache returns the publish deduplication cache: ristretto in
// process, backed by a NATS KV bucket when NATS is available.
func buildPublishedCache(ctx context.Context, cfg *config.Config, queue *adnats.Queue) (cache.Cache, error) {
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return nil, fmt.Errorf("l1 cache: %w", err)
	}
	if queue == nil || cfg.Cache.L2Bucket == "" {
		return tiered.New(l1, nil, 0), nil
	}
	l2, err := natskv.Open(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.PublishedTTL)
	if err != nil {
		return nil, fmt.Errorf("l2 cache: %w", err)
	}
	return tiered.New(l1, l2, time.Hour), nil
}

// buildIdempotencyStore keeps Idempotency-Key replays in NATS KV so they
// survive restarts and are shared between replicas.
func buildIdempotencyStore(ctx context.Context, cfg *config.Config, queue *adnats.Queue) (cache.Cache, error) {
	if queue == nil || cfg.NATS.IdempotencyBucket == "" {
		l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
		if err != nil {
			return nil, fmt.Errorf("idempotency cache: %w", err)
		}
		return l1, nil
	}
	kv, err := queue.KeyValue(ctx, cfg.NATS.IdempotencyBucket, cfg.NATS.IdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("idempotency bucket: %w", err)
	}
	return natskv.New(kv), nil
}

// buildNotifiers instantiates every provider configured under notify.providers
// through the notifier registry. Slack inherits the bot token and API URL of
// the slack section unless overridden.
func buildNotifiers(cfg *config.Config) ([]notifier.Notifier, error) {
	providers := make(map[string]map[string]string, len(cfg.Notify.Providers)+1)
	for name, pc := range cfg.Notify.Providers {
		providers[strings.ToLower(name)] = maps.Clone(pc)
	}
	if cfg.Slack.BotToken != "" {
		sc := providers["slack"]
		if sc == nil {
			sc = make(map[string]string)
			providers["slack"] = sc
		}
		setDefault(sc, "bot_token", cfg.Slack.BotToken)
		setDefault(sc, "api_url", cfg.Slack.APIURL)
	}
	if ec := providers["email"]; ec != nil {
		setDefault(ec, "public_url", cfg.Server.PublicURL)
	}

	out := make([]notifier.Notifier, 0, len(providers))
	for _, name := range slices.Sorted(maps.Keys(providers)) {
		n, err := notifier.New(name, providers[name])
		if err != nil {
			return nil, fmt.Errorf("notifier %s: %w", name, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func setDefault(m map[string]string, key, value string) {
	if m[key] == "" {
		m[key] = value
	}
}
