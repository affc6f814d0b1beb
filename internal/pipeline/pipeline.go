// Package pipeline runs one news generation pass: fetch, dedup, rewrite,
// illustrate, categorize, publish, then trim the breaking window.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/newshub/internal/catalog"
	"github.com/deusflow/newshub/internal/category"
	"github.com/deusflow/newshub/internal/dedup"
	"github.com/deusflow/newshub/internal/illustrator"
	"github.com/deusflow/newshub/internal/metrics"
	"github.com/deusflow/newshub/internal/news"
	"github.com/deusflow/newshub/internal/publisher"
	"github.com/deusflow/newshub/internal/rss"
)

// WindowSource loads the recent-articles window for duplicate checks.
type WindowSource interface {
	RecentWindow(ctx context.Context, limit int) ([]news.WindowEntry, error)
}

type Fetcher interface {
	FetchAll(ctx context.Context, feeds []rss.Feed) []news.RawItem
}

type Rewriter interface {
	Rewrite(ctx context.Context, item news.RawItem) (*news.ProcessedArticle, error)
}

type Illustrator interface {
	Illustrate(ctx context.Context, in illustrator.PromptInput, slug string) (string, error)
}

type CategoryResolver interface {
	Resolve(ctx context.Context, name string) (string, bool)
}

type Publisher interface {
	Publish(ctx context.Context, in publisher.Input) (publisher.Outcome, error)
	MaintainBreaking(ctx context.Context) (int, error)
}

// Notifier receives the run report. Optional.
type Notifier interface {
	SendMessage(ctx context.Context, text string) error
}

// Deps holds the collaborators of a run.
type Deps struct {
	Window      WindowSource
	Fetcher     Fetcher
	Feeds       []rss.Feed
	Rewriter    Rewriter
	Illustrator Illustrator
	Catalog     *catalog.Catalog
	Categories  CategoryResolver
	Publisher   Publisher
	Metrics     *metrics.Metrics
	Notifier    Notifier
}

type Options struct {
	DedupWindow    int
	DedupThreshold float64
	ItemDelay      time.Duration
}

type Pipeline struct {
	deps  Deps
	opts  Options
	sleep func(ctx context.Context, d time.Duration) error
	log   *slog.Logger
}

func New(deps Deps, opts Options, log *slog.Logger) *Pipeline {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	return &Pipeline{
		deps:  deps,
		opts:  opts,
		sleep: sleepContext,
		log:   log.With("component", "pipeline"),
	}
}

// Report summarizes one run.
type Report struct {
	Selection string
	Fetched   int
	Selected  int
	Inserted  int
	Updated   int
	Skipped   int
	Failed    int
	Demoted   int
	Duration  time.Duration
	Published []publisher.Outcome
}

// Run processes every selected item in order. Per-item failures are logged
// and counted; only a failure to load the dedup window or a cancelled
// context ends the run early.
func (p *Pipeline) Run(ctx context.Context, selection string) (Report, error) {
	start := time.Now()
	report := Report{Selection: selection}
	if selection == "" {
		report.Selection = "all"
	}

	err := p.run(ctx, selection, &report)

	report.Duration = time.Since(start)
	p.deps.Metrics.RecordProcessingTime(report.Duration)
	if err != nil {
		p.deps.Metrics.SetError(err.Error())
	} else {
		p.deps.Metrics.SetLastRun()
	}

	p.log.Info("run finished",
		"selection", report.Selection,
		"fetched", report.Fetched,
		"selected", report.Selected,
		"inserted", report.Inserted,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"demoted", report.Demoted,
		"duration", report.Duration.Round(time.Second),
	)
	p.notify(ctx, report, err)
	return report, err
}

func (p *Pipeline) run(ctx context.Context, selection string, report *Report) error {
	window, err := p.deps.Window.RecentWindow(ctx, p.opts.DedupWindow)
	if err != nil {
		return fmt.Errorf("load dedup window: %w", err)
	}
	filter := dedup.New(window, p.opts.DedupThreshold)

	items := p.deps.Fetcher.FetchAll(ctx, p.deps.Feeds)
	report.Fetched = len(items)
	items = rss.Select(items, selection)
	report.Selected = len(items)
	p.log.Info("processing items", "count", len(items), "window", filter.Len())

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		called := p.processItem(ctx, filter, item, report)
		if !called || i == len(items)-1 {
			continue
		}
		if err := p.sleep(ctx, p.opts.ItemDelay); err != nil {
			return err
		}
	}

	demoted, err := p.deps.Publisher.MaintainBreaking(ctx)
	if err != nil {
		p.log.Error("breaking maintenance failed", "error", err)
		return nil
	}
	report.Demoted = demoted
	p.deps.Metrics.AddDemoted(demoted)
	return nil
}

// processItem handles one feed item. It reports whether the rewrite model
// was called, which is what the inter-item delay paces.
func (p *Pipeline) processItem(ctx context.Context, filter *dedup.Filter, item news.RawItem, report *Report) bool {
	log := p.log.With("title", item.Title, "source", item.Source)

	check := filter.Check(item.Title)
	if check.Decision == dedup.Skip {
		report.Skipped++
		p.deps.Metrics.IncItem(metrics.OutcomeSkipped)
		log.Debug("skipping item without title")
		return false
	}
	if check.Decision == dedup.Update {
		log.Info("near-duplicate found, refreshing", "match_id", check.Match.ID, "score", check.Score)
	}

	article, err := p.deps.Rewriter.Rewrite(ctx, item)
	if err != nil {
		report.Failed++
		p.deps.Metrics.IncItem(metrics.OutcomeFailed)
		p.deps.Metrics.IncRewriteFailure()
		log.Error("rewrite failed, skipping item", "error", err)
		return true
	}

	imageURL := p.illustrate(ctx, article)

	in := publisher.Input{Article: article, SourceTitle: item.Title, ImageURL: imageURL}
	if check.Decision == dedup.Update {
		match := check.Match
		in.Existing = &match
	} else if id, ok := p.deps.Categories.Resolve(ctx, article.Category); ok {
		in.CategoryID = id
	}

	out, err := p.deps.Publisher.Publish(ctx, in)
	if err != nil {
		report.Failed++
		p.deps.Metrics.IncItem(metrics.OutcomeFailed)
		log.Error("publish failed", "error", err)
		return true
	}

	report.Published = append(report.Published, out)
	switch out.Action {
	case publisher.Inserted:
		report.Inserted++
		p.deps.Metrics.IncItem(metrics.OutcomeInserted)
		filter.Remember(news.WindowEntry{ID: out.ID, Title: article.Title, SourceTitle: item.Title})
	case publisher.Updated:
		report.Updated++
		p.deps.Metrics.IncItem(metrics.OutcomeUpdated)
	}
	return true
}

// illustrate returns a generated image URL, or a catalog image when
// generation fails outright. The result always passes catalog validation.
func (p *Pipeline) illustrate(ctx context.Context, article *news.ProcessedArticle) string {
	in := illustrator.RawTitle(article.Title)
	if article.ImagePrompt != "" {
		in = illustrator.PrebuiltPrompt(article.ImagePrompt)
	}

	imageURL, err := p.deps.Illustrator.Illustrate(ctx, in, category.Slugify(article.Title))
	if err != nil {
		p.log.Warn("image generation failed, using catalog image", "title", article.Title, "error", err)
		p.deps.Metrics.IncImageFallback()
		return p.deps.Catalog.Pick(article.Category)
	}
	return catalog.Validate(imageURL, article.Category)
}

func (p *Pipeline) notify(ctx context.Context, report Report, runErr error) {
	if p.deps.Notifier == nil {
		return
	}
	// the run context may already be cancelled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	if err := p.deps.Notifier.SendMessage(ctx, FormatReport(report, runErr)); err != nil {
		p.log.Warn("run report not delivered", "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsCancelled reports whether err came from the run being interrupted.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
