package sitemap

import (
	"context"
	"database/sql"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newshub/internal/logger"
	"github.com/deusflow/newshub/internal/storage"
)

type staticSource struct {
	articles []storage.PublishedArticle
	err      error
}

func (s staticSource) ListPublished(context.Context, time.Time, int) ([]storage.PublishedArticle, error) {
	return s.articles, s.err
}

func valid(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

var now = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

func fixture() []storage.PublishedArticle {
	return []storage.PublishedArticle{
		{ID: "1", Title: "RBI keeps rate & outlook", Slug: "rbi-keeps-rate", CategorySlug: valid("business"),
			Excerpt: valid("Rates held."), FeaturedImage: valid("https://img/1"),
			PublishedAt: now.Add(-2 * time.Hour), UpdatedAt: now.Add(-time.Hour)},
		{ID: "2", Title: "Old story", Slug: "old-story", CategorySlug: valid("world"),
			PublishedAt: now.Add(-72 * time.Hour), UpdatedAt: now.Add(-72 * time.Hour)},
		{ID: "3", Title: "Duplicate slug", Slug: "rbi-keeps-rate", CategorySlug: valid("india"),
			PublishedAt: now.Add(-3 * time.Hour)},
		{ID: "4", Title: "No category", Slug: "no-category", PublishedAt: now},
	}
}

func newGenerator(src Source) *Generator {
	g := New(src, Options{BaseURL: "https://nonamenews.site", SiteName: "NoNameNews"}, logger.Discard())
	g.now = func() time.Time { return now }
	return g
}

func TestBuild(t *testing.T) {
	files, sum, err := newGenerator(staticSource{articles: fixture()}).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Posts: 2, News: 1, Categories: 9, Static: 6, FeedItems: 3}, sum)
	assert.Len(t, files, 6)

	var posts urlSet
	require.NoError(t, xml.Unmarshal(files[PostsFile], &posts))
	require.Len(t, posts.URLs, 2)
	assert.Equal(t, "https://nonamenews.site/business/rbi-keeps-rate", posts.URLs[0].Loc)
	assert.Equal(t, "2025-01-06T11:00:00Z", posts.URLs[0].LastMod)
	assert.Equal(t, "weekly", posts.URLs[0].ChangeFreq)
	assert.Equal(t, "0.6", posts.URLs[0].Priority)

	news := string(files[NewsFile])
	assert.Contains(t, news, `xmlns:news="http://www.google.com/schemas/sitemap-news/0.9"`)
	assert.Contains(t, news, "<news:name>NoNameNews</news:name>")
	assert.Contains(t, news, "<news:language>en</news:language>")
	assert.Contains(t, news, "<news:title>RBI keeps rate &amp; outlook</news:title>")
	assert.Contains(t, news, "<news:publication_date>2025-01-06T10:00:00Z</news:publication_date>")
	assert.NotContains(t, news, "old-story")

	var static urlSet
	require.NoError(t, xml.Unmarshal(files[StaticFile], &static))
	assert.Equal(t, urlEntry{Loc: "https://nonamenews.site", ChangeFreq: "daily", Priority: "1.0"}, static.URLs[0])
	assert.Equal(t, "0.8", static.URLs[1].Priority)

	var index sitemapIndex
	require.NoError(t, xml.Unmarshal(files[IndexFile], &index))
	require.Len(t, index.Sitemaps, 4)
	assert.Equal(t, "https://nonamenews.site/sitemap-news.xml", index.Sitemaps[0].Loc)

	feed := string(files[FeedFile])
	assert.Contains(t, feed, "<title>NoNameNews</title>")
	assert.Contains(t, feed, "https://nonamenews.site/business/rbi-keeps-rate")
	assert.Contains(t, feed, `url="https://img/1"`)
	assert.NotContains(t, feed, "no-category")
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public")
	sum, err := newGenerator(staticSource{articles: fixture()}).Write(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Posts)

	for _, name := range []string{IndexFile, PostsFile, NewsFile, CategoriesFile, StaticFile, FeedFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}
}

func TestBuild_SourceError(t *testing.T) {
	_, _, err := newGenerator(staticSource{err: errors.New("db down")}).Build(context.Background())
	assert.Error(t, err)
}
