// Package app builds the long-lived handles from configuration and hands
// them to the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/deusflow/newshub/internal/catalog"
	"github.com/deusflow/newshub/internal/category"
	"github.com/deusflow/newshub/internal/config"
	"github.com/deusflow/newshub/internal/gemini"
	"github.com/deusflow/newshub/internal/illustrator"
	"github.com/deusflow/newshub/internal/images"
	"github.com/deusflow/newshub/internal/metrics"
	"github.com/deusflow/newshub/internal/pipeline"
	"github.com/deusflow/newshub/internal/publisher"
	"github.com/deusflow/newshub/internal/ratelimit"
	"github.com/deusflow/newshub/internal/rewriter"
	"github.com/deusflow/newshub/internal/rss"
	"github.com/deusflow/newshub/internal/scraper"
	"github.com/deusflow/newshub/internal/server"
	"github.com/deusflow/newshub/internal/sitemap"
	"github.com/deusflow/newshub/internal/storage"
	"github.com/deusflow/newshub/internal/telegram"
	"github.com/deusflow/newshub/internal/translate"
	"github.com/deusflow/newshub/internal/trigger"
)

var (
	_ pipeline.WindowSource = (*storage.Postgres)(nil)
	_ publisher.Store       = (*storage.Postgres)(nil)
	_ category.Store        = (*storage.Postgres)(nil)
	_ images.Store          = (*storage.Postgres)(nil)
	_ sitemap.Source        = (*storage.Postgres)(nil)
	_ translate.Store       = (*storage.Postgres)(nil)
)

// categoryCacheTTL bounds how long a resolved category id is reused.
const categoryCacheTTL = time.Hour

// imagePace spaces out requests to the image service.
const imagePace = time.Second

type App struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	http    *http.Client

	store  *storage.Postgres
	gemini *gemini.Client
}

func New(cfg *config.Config, log *slog.Logger) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (a *App) Config() *config.Config    { return a.cfg }
func (a *App) Metrics() *metrics.Metrics { return a.metrics }
func (a *App) Log() *slog.Logger         { return a.log }

// Store opens the database on first use.
func (a *App) Store(ctx context.Context) (*storage.Postgres, error) {
	if a.store != nil {
		return a.store, nil
	}
	if err := a.cfg.ValidateStore(); err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, a.cfg.DatabaseURL, a.log)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// Close releases the database and model clients.
func (a *App) Close() {
	if a.gemini != nil {
		a.gemini.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close database", "error", err)
		}
	}
}

// Pipeline assembles a generation run. Missing credentials fail here,
// before any work starts.
func (a *App) Pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	feeds, err := rss.LoadFeeds(a.cfg.FeedsConfigPath)
	if err != nil {
		return nil, err
	}

	store, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}

	if a.gemini == nil {
		if a.gemini, err = gemini.NewClient(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel); err != nil {
			return nil, err
		}
	}

	var sc *scraper.Scraper
	if a.cfg.ScrapeFullText {
		sc = scraper.New(a.http, a.log)
	}

	deps := pipeline.Deps{
		Window:      store,
		Fetcher:     rss.NewFetcher(sc, a.cfg.RequestTimeout, a.log),
		Feeds:       feeds,
		Rewriter:    rewriter.New(a.gemini, a.cfg.RewriteMaxAttempts, a.cfg.RewriteBackoff, a.log),
		Illustrator: a.illustrator(),
		Catalog:     newCatalog(),
		Categories:  category.NewResolver(store, categoryCacheTTL, a.log),
		Publisher: publisher.New(store, publisher.Options{
			BreakingCap:      a.cfg.BreakingCap,
			DomesticCategory: a.cfg.DomesticCategory,
			AuthorID:         a.authorID(ctx, store),
		}, a.log),
		Metrics: a.metrics,
	}
	if tg := telegram.New(a.cfg.TelegramToken, a.cfg.TelegramChatID, a.http, a.log); tg != nil {
		deps.Notifier = tg
	}

	return pipeline.New(deps, pipeline.Options{
		DedupWindow:    a.cfg.DedupWindow,
		DedupThreshold: a.cfg.DedupThreshold,
		ItemDelay:      a.cfg.ItemDelay,
	}, a.log), nil
}

// authorID returns AUTHOR_ID or the first profile. Articles are stored
// without an author when neither exists.
func (a *App) authorID(ctx context.Context, store *storage.Postgres) string {
	if a.cfg.AuthorID != "" {
		return a.cfg.AuthorID
	}
	id, err := store.SystemAuthorID(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.log.Warn("could not resolve system author", "error", err)
		}
		return ""
	}
	return id
}

func (a *App) illustrator() *illustrator.Illustrator {
	return illustrator.New(illustrator.Options{
		BaseURL: a.cfg.ImageBaseURL,
		Width:   a.cfg.ImageWidth,
		Height:  a.cfg.ImageHeight,
		Model:   a.cfg.ImageModel,
	}, a.http, ratelimit.NewPacer("pollinations", imagePace), a.log)
}

func (a *App) Categories(ctx context.Context) (*category.Resolver, error) {
	store, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	return category.NewResolver(store, categoryCacheTTL, a.log), nil
}

func (a *App) ImageRegenerator(ctx context.Context, useCatalog bool) (*images.Regenerator, error) {
	store, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	return images.New(store, a.illustrator(), newCatalog(), images.Options{
		UseCatalog: useCatalog,
		Pause:      imagePace,
	}, a.log), nil
}

func (a *App) Sitemap(ctx context.Context) (*sitemap.Generator, error) {
	store, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	return sitemap.New(store, sitemap.Options{
		BaseURL:  a.cfg.SiteURL,
		SiteName: a.cfg.SiteName,
	}, a.log), nil
}

// Server builds the HTTP API. The translation cache uses the database when
// one is configured and reachable.
func (a *App) Server(ctx context.Context) *server.Server {
	var cacheStore translate.Store
	if a.cfg.DatabaseURL != "" {
		if store, err := a.Store(ctx); err != nil {
			a.log.Warn("translation cache disabled", "error", err)
		} else {
			cacheStore = store
		}
	}

	tr := translate.New(translate.Options{
		APIKey:  a.cfg.GroqAPIKey,
		BaseURL: a.cfg.GroqBaseURL,
		Model:   a.cfg.GroqModel,
		Timeout: a.cfg.RequestTimeout,
	}, cacheStore, a.log)
	if !tr.Configured() {
		a.log.Warn("GROQ_API_KEY not set, translation endpoint will fail")
	}

	dispatcher := trigger.New(trigger.Options{
		Token:    a.cfg.GitHubToken,
		Owner:    a.cfg.GitHubOwner,
		Repo:     a.cfg.GitHubRepo,
		Workflow: a.cfg.GitHubWorkflow,
		Ref:      a.cfg.GitHubRef,
	}, a.http, a.log)

	return server.New(a.cfg.HTTPAddr, dispatcher, tr, a.metrics, a.log)
}

func newCatalog() *catalog.Catalog {
	return catalog.New(rand.NewSource(time.Now().UnixNano()))
}

// Describe is a one-line summary of the effective settings for startup logs.
func (a *App) Describe() string {
	return fmt.Sprintf("model=%s feeds=%s delay=%s window=%d threshold=%.2f cap=%d",
		a.cfg.GeminiModel, a.cfg.FeedsConfigPath, a.cfg.ItemDelay, a.cfg.DedupWindow, a.cfg.DedupThreshold, a.cfg.BreakingCap)
}
