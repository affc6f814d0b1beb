package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/deusflow/newshub/internal/news"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("unique constraint violation")
)

// Postgres is the article and category store.
type Postgres struct {
	db  *sqlx.DB
	qb  sq.StatementBuilderType
	log *slog.Logger
}

// Open connects, pings and makes sure the schema exists.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := New(sqlx.NewDb(db, "postgres"), log)
	if err := p.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	p.log.Info("PostgreSQL connected")
	return p, nil
}

// New wraps an existing handle. Used by tests with sqlmock.
func New(db *sqlx.DB, log *slog.Logger) *Postgres {
	return &Postgres{
		db:  db,
		qb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		log: log.With("component", "storage"),
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name TEXT UNIQUE NOT NULL,
	slug TEXT UNIQUE NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS articles (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	slug TEXT UNIQUE NOT NULL,
	content TEXT NOT NULL,
	excerpt TEXT,
	category_id UUID REFERENCES categories(id),
	featured_image TEXT,
	status VARCHAR(20) NOT NULL DEFAULT 'draft',
	published_at TIMESTAMPTZ,
	author_id UUID,
	tags TEXT[] NOT NULL DEFAULT '{}',
	is_breaking BOOLEAN NOT NULL DEFAULT FALSE,
	is_featured BOOLEAN NOT NULL DEFAULT FALSE,
	secondary_category TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	source_title TEXT
);

ALTER TABLE articles ADD COLUMN IF NOT EXISTS source_title TEXT;

CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_breaking ON articles(is_breaking) WHERE is_breaking;

CREATE TABLE IF NOT EXISTS translation_cache (
	content_hash VARCHAR(64) PRIMARY KEY,
	language VARCHAR(40) NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	ai_provider VARCHAR(50),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_used_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	use_count INTEGER NOT NULL DEFAULT 1
);
`

// InitSchema creates the tables if they don't exist.
func (p *Postgres) InitSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// RecentWindow returns id, title and feed title of the most recently
// published articles.
func (p *Postgres) RecentWindow(ctx context.Context, limit int) ([]news.WindowEntry, error) {
	query, args, err := p.qb.Select("id", "title", "COALESCE(source_title, '') AS source_title").
		From("articles").
		OrderBy("published_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	var out []news.WindowEntry
	if err := p.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("load recent articles: %w", err)
	}
	return out, nil
}

// FindCategoryByName matches the name exactly.
func (p *Postgres) FindCategoryByName(ctx context.Context, name string) (news.Category, error) {
	query, args, err := p.qb.Select("id", "name", "slug").
		From("categories").
		Where(sq.Eq{"name": name}).
		Limit(1).
		ToSql()
	if err != nil {
		return news.Category{}, err
	}

	var c news.Category
	if err := p.db.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return news.Category{}, ErrNotFound
		}
		return news.Category{}, fmt.Errorf("find category %q: %w", name, err)
	}
	return c, nil
}

// CreateCategory inserts a category and returns it with its id. A name or
// slug that already exists yields ErrConflict.
func (p *Postgres) CreateCategory(ctx context.Context, name, slug string) (news.Category, error) {
	query, args, err := p.qb.Insert("categories").
		Columns("name", "slug").
		Values(name, slug).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return news.Category{}, err
	}

	c := news.Category{Name: name, Slug: slug}
	if err := p.db.GetContext(ctx, &c.ID, query, args...); err != nil {
		if isUniqueViolation(err) {
			return news.Category{}, ErrConflict
		}
		return news.Category{}, fmt.Errorf("create category %q: %w", name, err)
	}
	return c, nil
}

func (p *Postgres) ListCategories(ctx context.Context) ([]news.Category, error) {
	query, args, err := p.qb.Select("id", "name", "slug").From("categories").OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}
	var out []news.Category
	if err := p.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (p *Postgres) CountCategories(ctx context.Context) (int, error) {
	query, args, err := p.qb.Select("COUNT(*)").From("categories").ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := p.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

// InsertArticle writes a new row. A taken slug yields ErrConflict.
func (p *Postgres) InsertArticle(ctx context.Context, a news.Article) error {
	tags := a.Tags
	if tags == nil {
		tags = pq.StringArray{}
	}
	query, args, err := p.qb.Insert("articles").
		Columns("id", "title", "slug", "content", "excerpt", "category_id", "featured_image",
			"status", "published_at", "author_id", "tags", "is_breaking", "is_featured",
			"secondary_category", "created_at", "updated_at", "source_title").
		Values(a.ID, a.Title, a.Slug, a.Content, a.Excerpt, a.CategoryID, a.FeaturedImage,
			a.Status, a.PublishedAt, a.AuthorID, tags, a.IsBreaking, a.IsFeatured,
			a.SecondaryCategory, a.CreatedAt, a.UpdatedAt, a.SourceTitle).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert article %q: %w", a.Slug, err)
	}
	return nil
}

// ArticleUpdate is the set of columns a near-duplicate refreshes.
type ArticleUpdate struct {
	Title         string
	Content       string
	Excerpt       string
	FeaturedImage string
	UpdatedAt     time.Time
}

// UpdateArticle refreshes an existing row and re-flags it as breaking.
// id, slug, created_at and published_at are left alone.
func (p *Postgres) UpdateArticle(ctx context.Context, id string, u ArticleUpdate) error {
	query, args, err := p.qb.Update("articles").
		Set("title", u.Title).
		Set("content", u.Content).
		Set("excerpt", u.Excerpt).
		Set("featured_image", u.FeaturedImage).
		Set("updated_at", u.UpdatedAt).
		Set("is_breaking", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	return p.execOne(ctx, query, args, "update article "+id)
}

func (p *Postgres) execOne(ctx context.Context, query string, args []interface{}, what string) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// BreakingRow is one entry of the breaking-news window.
type BreakingRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	PublishedAt time.Time `db:"published_at"`
}

// ListBreaking returns every breaking article, newest first.
func (p *Postgres) ListBreaking(ctx context.Context) ([]BreakingRow, error) {
	query, args, err := p.qb.Select("id", "title", "published_at").
		From("articles").
		Where(sq.Eq{"is_breaking": true}).
		OrderBy("published_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var out []BreakingRow
	if err := p.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list breaking: %w", err)
	}
	return out, nil
}

// Demote clears the breaking flag on the given articles.
func (p *Postgres) Demote(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := p.qb.Update("articles").
		Set("is_breaking", false).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("demote %d articles: %w", len(ids), err)
	}
	return res.RowsAffected()
}

// PublishedArticle is what the sitemap and feed builders need.
type PublishedArticle struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	Slug          string         `db:"slug"`
	Excerpt       sql.NullString `db:"excerpt"`
	FeaturedImage sql.NullString `db:"featured_image"`
	CategorySlug  sql.NullString `db:"category_slug"`
	PublishedAt   time.Time      `db:"published_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// ListPublished returns published articles newest first. A zero since means
// no lower bound; limit 0 means no limit.
func (p *Postgres) ListPublished(ctx context.Context, since time.Time, limit int) ([]PublishedArticle, error) {
	b := p.qb.Select("a.id", "a.title", "a.slug", "a.excerpt", "a.featured_image",
		"c.slug AS category_slug", "a.published_at", "a.updated_at").
		From("articles a").
		LeftJoin("categories c ON c.id = a.category_id").
		Where(sq.Eq{"a.status": news.StatusPublished}).
		OrderBy("a.published_at DESC")
	if !since.IsZero() {
		b = b.Where(sq.GtOrEq{"a.published_at": since})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var out []PublishedArticle
	if err := p.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}
	return out, nil
}

// UpdateImage replaces an article's featured image.
func (p *Postgres) UpdateImage(ctx context.Context, id, imageURL string) error {
	query, args, err := p.qb.Update("articles").
		Set("featured_image", imageURL).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	return p.execOne(ctx, query, args, "update image "+id)
}

// SystemAuthorID returns the first profile id, or ErrNotFound when there is
// no profiles table or it is empty.
func (p *Postgres) SystemAuthorID(ctx context.Context) (string, error) {
	query, args, err := p.qb.Select("id").From("profiles").Limit(1).ToSql()
	if err != nil {
		return "", err
	}
	var id string
	if err := p.db.GetContext(ctx, &id, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.Is(err, sql.ErrNoRows) || (errors.As(err, &pqErr) && pqErr.Code == "42P01") {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("find system author: %w", err)
	}
	return id, nil
}
