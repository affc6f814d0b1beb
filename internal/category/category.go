// Package category maps free-text category names to stored category ids.
package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/deusflow/newshub/internal/cache"
	"github.com/deusflow/newshub/internal/news"
	"github.com/deusflow/newshub/internal/storage"
)

// Store is the persistence the resolver needs.
type Store interface {
	FindCategoryByName(ctx context.Context, name string) (news.Category, error)
	CreateCategory(ctx context.Context, name, slug string) (news.Category, error)
	CountCategories(ctx context.Context) (int, error)
}

// Normalize trims the name and upper-cases its first letter only. The rest
// is left as is, so "FINANCE" and "finance" stay different names.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return news.DefaultCategory
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

var (
	nonWord   = regexp.MustCompile(`[^\w\s-]`)
	separator = regexp.MustCompile(`[\s_-]+`)
)

// Slugify lowercases s, drops characters other than letters, digits,
// whitespace, underscore and hyphen, and joins the words with single hyphens.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWord.ReplaceAllString(s, "")
	s = separator.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

type Resolver struct {
	store Store
	cache *cache.Cache[string]
	log   *slog.Logger
}

func NewResolver(store Store, ttl time.Duration, log *slog.Logger) *Resolver {
	return &Resolver{
		store: store,
		cache: cache.New[string](ttl),
		log:   log.With("component", "category"),
	}
}

// Resolve returns the id for name, creating the category on first use.
// A persistence failure is logged and reported as ok=false.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, bool) {
	name = Normalize(name)
	if id, ok := r.cache.Get(name); ok {
		return id, true
	}

	c, err := r.store.FindCategoryByName(ctx, name)
	if err == nil {
		r.cache.Set(name, c.ID)
		return c.ID, true
	}
	if !errors.Is(err, storage.ErrNotFound) {
		r.log.Error("category lookup failed", "name", name, "error", err)
		return "", false
	}

	c, err = r.create(ctx, name)
	if err != nil {
		r.log.Error("category create failed", "name", name, "error", err)
		return "", false
	}

	r.cache.Set(name, c.ID)
	return c.ID, true
}

// maxSlugSuffix bounds the "-2", "-3", ... variants tried for a taken slug.
const maxSlugSuffix = 5

func (r *Resolver) create(ctx context.Context, name string) (news.Category, error) {
	base := Slugify(name)
	if base == "" {
		base = Slugify(news.DefaultCategory)
	}

	slug := base
	for n := 2; ; n++ {
		c, err := r.store.CreateCategory(ctx, name, slug)
		if err == nil {
			r.log.Info("created category", "name", name, "slug", slug, "id", c.ID)
			return c, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return news.Category{}, err
		}

		// the name may have been created concurrently
		if existing, ferr := r.store.FindCategoryByName(ctx, name); ferr == nil {
			return existing, nil
		}
		// otherwise a different name owns the slug
		if n > maxSlugSuffix {
			return news.Category{}, fmt.Errorf("no free slug for %q: %w", name, err)
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

// Seed inserts the default categories when the table is empty. It returns
// how many were created.
func (r *Resolver) Seed(ctx context.Context) (int, error) {
	n, err := r.store.CountCategories(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info("categories already present, skipping seed", "count", n)
		return 0, nil
	}

	created := 0
	for _, name := range news.AllowedCategories {
		if _, err := r.store.CreateCategory(ctx, name, Slugify(name)); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}
