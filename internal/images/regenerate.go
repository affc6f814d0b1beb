// Package images replaces the featured images of stored articles.
package images

import (
	"context"
	"log/slog"
	"time"

	"github.com/deusflow/newshub/internal/catalog"
	"github.com/deusflow/newshub/internal/category"
	"github.com/deusflow/newshub/internal/illustrator"
	"github.com/deusflow/newshub/internal/ratelimit"
	"github.com/deusflow/newshub/internal/storage"
)

type Store interface {
	ListPublished(ctx context.Context, since time.Time, limit int) ([]storage.PublishedArticle, error)
	UpdateImage(ctx context.Context, id, imageURL string) error
}

type Illustrator interface {
	Illustrate(ctx context.Context, in illustrator.PromptInput, slug string) (string, error)
}

type Options struct {
	// UseCatalog assigns catalog images instead of generating new ones.
	UseCatalog bool
	// Pause is the minimum spacing between articles.
	Pause time.Duration
}

type Regenerator struct {
	store       Store
	illustrator Illustrator
	catalog     *catalog.Catalog
	opts        Options
	pacer       *ratelimit.Pacer
	log         *slog.Logger
}

func New(store Store, il Illustrator, cat *catalog.Catalog, opts Options, log *slog.Logger) *Regenerator {
	return &Regenerator{
		store:       store,
		illustrator: il,
		catalog:     cat,
		opts:        opts,
		pacer:       ratelimit.NewPacer("regenerate", opts.Pause),
		log:         log.With("component", "images"),
	}
}

type Result struct {
	Total   int
	Updated int
	Failed  int
}

// Run gives every published article a new image. Failures are logged and
// counted; a cancelled context stops the loop.
func (r *Regenerator) Run(ctx context.Context) (Result, error) {
	articles, err := r.store.ListPublished(ctx, time.Time{}, 0)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(articles)}
	r.log.Info("regenerating images", "articles", len(articles), "catalog", r.opts.UseCatalog)

	for _, a := range articles {
		if err := r.pacer.Wait(ctx); err != nil {
			return res, err
		}

		cat := a.CategorySlug.String
		imageURL := r.imageFor(ctx, a.Title, a.Slug, cat)

		if err := r.store.UpdateImage(ctx, a.ID, imageURL); err != nil {
			res.Failed++
			r.log.Error("failed to update image", "id", a.ID, "title", a.Title, "error", err)
			continue
		}
		res.Updated++
		r.log.Info("updated image", "title", a.Title)
	}

	r.log.Info("image regeneration done", "updated", res.Updated, "failed", res.Failed, "stats", r.pacer.GetStats())
	return res, nil
}

func (r *Regenerator) imageFor(ctx context.Context, title, slug, cat string) string {
	if r.opts.UseCatalog {
		return r.catalog.Pick(cat)
	}
	if slug == "" {
		slug = category.Slugify(title)
	}
	imageURL, err := r.illustrator.Illustrate(ctx, illustrator.RawTitle(title), slug)
	if err != nil {
		r.log.Warn("image generation failed, using catalog image", "title", title, "error", err)
		return r.catalog.Pick(cat)
	}
	return catalog.Validate(imageURL, cat)
}
