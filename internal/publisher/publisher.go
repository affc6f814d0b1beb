// Package publisher writes processed articles to the store and keeps the
// breaking-news window bounded.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/newshub/internal/category"
	"github.com/deusflow/newshub/internal/news"
	"github.com/deusflow/newshub/internal/storage"
)

type Store interface {
	InsertArticle(ctx context.Context, a news.Article) error
	UpdateArticle(ctx context.Context, id string, u storage.ArticleUpdate) error
	ListBreaking(ctx context.Context) ([]storage.BreakingRow, error)
	Demote(ctx context.Context, ids []string) (int64, error)
}

type Action string

const (
	Inserted Action = "inserted"
	Updated  Action = "updated"
)

// Input is one article ready to publish. Existing is set when the duplicate
// check matched a stored article.
type Input struct {
	Article     *news.ProcessedArticle
	SourceTitle string
	ImageURL    string
	CategoryID  string
	Existing    *news.WindowEntry
}

type Outcome struct {
	Action Action
	ID     string
	Slug   string // empty for updates, the stored slug is not touched
}

type Options struct {
	BreakingCap      int
	DomesticCategory string
	AuthorID         string
}

type Publisher struct {
	store Store
	opts  Options
	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

func New(store Store, opts Options, log *slog.Logger) *Publisher {
	return &Publisher{
		store: store,
		opts:  opts,
		now:   time.Now,
		newID: uuid.NewString,
		log:   log.With("component", "publisher"),
	}
}

// Publish inserts a new article or refreshes the matched one.
func (p *Publisher) Publish(ctx context.Context, in Input) (Outcome, error) {
	if in.Article == nil {
		return Outcome{}, errors.New("publish: nil article")
	}
	if in.Existing != nil {
		return p.update(ctx, in)
	}
	return p.insert(ctx, in)
}

func (p *Publisher) update(ctx context.Context, in Input) (Outcome, error) {
	a := in.Article
	err := p.store.UpdateArticle(ctx, in.Existing.ID, storage.ArticleUpdate{
		Title:         a.Title,
		Content:       a.Content,
		Excerpt:       a.Excerpt,
		FeaturedImage: in.ImageURL,
		UpdatedAt:     p.now(),
	})
	if err != nil {
		return Outcome{}, err
	}
	p.log.Info("updated article", "id", in.Existing.ID, "title", a.Title)
	return Outcome{Action: Updated, ID: in.Existing.ID}, nil
}

func (p *Publisher) insert(ctx context.Context, in Input) (Outcome, error) {
	a := in.Article
	now := p.now()
	id := p.newID()

	slug := category.Slugify(a.Title)
	if slug == "" {
		slug = "article-" + shortID(id)
	}

	row := news.Article{
		ID:                id,
		Title:             a.Title,
		Slug:              slug,
		Content:           a.Content,
		Excerpt:           a.Excerpt,
		CategoryID:        optional(in.CategoryID),
		FeaturedImage:     in.ImageURL,
		Status:            news.StatusPublished,
		PublishedAt:       now,
		AuthorID:          optional(p.opts.AuthorID),
		Tags:              a.Tags,
		IsBreaking:        true,
		IsFeatured:        a.Category == p.opts.DomesticCategory,
		SecondaryCategory: optional(a.SecondaryCategory),
		CreatedAt:         now,
		UpdatedAt:         now,
		SourceTitle:       in.SourceTitle,
	}

	err := p.store.InsertArticle(ctx, row)
	if errors.Is(err, storage.ErrConflict) {
		// same slug from an older, dissimilar title
		row.Slug = slug + "-" + shortID(id)
		err = p.store.InsertArticle(ctx, row)
	}
	if err != nil {
		return Outcome{}, err
	}

	p.log.Info("inserted article", "id", id, "slug", row.Slug, "category", a.Category, "featured", row.IsFeatured)
	return Outcome{Action: Inserted, ID: id, Slug: row.Slug}, nil
}

// MaintainBreaking demotes every breaking article ranked below the cap by
// published_at. It returns how many were demoted.
func (p *Publisher) MaintainBreaking(ctx context.Context) (int, error) {
	rows, err := p.store.ListBreaking(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) <= p.opts.BreakingCap {
		p.log.Info("breaking window within cap", "count", len(rows), "cap", p.opts.BreakingCap)
		return 0, nil
	}

	ids := make([]string, 0, len(rows)-p.opts.BreakingCap)
	for _, r := range rows[p.opts.BreakingCap:] {
		ids = append(ids, r.ID)
	}
	if _, err := p.store.Demote(ctx, ids); err != nil {
		return 0, fmt.Errorf("demote breaking overflow: %w", err)
	}

	p.log.Info("demoted old breaking news", "demoted", len(ids), "cap", p.opts.BreakingCap)
	return len(ids), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
