// Package sitemap renders the site's sitemap files and RSS feed from the
// published articles.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/feeds"

	"github.com/deusflow/newshub/internal/storage"
)

const (
	sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
	newsNS    = "http://www.google.com/schemas/sitemap-news/0.9"

	newsWindow = 48 * time.Hour
)

// File names written by Write.
const (
	IndexFile      = "sitemap.xml"
	PostsFile      = "sitemap-posts.xml"
	NewsFile       = "sitemap-news.xml"
	CategoriesFile = "sitemap-categories.xml"
	StaticFile     = "sitemap-static.xml"
	FeedFile       = "rss.xml"
)

var (
	staticPages    = []string{"", "/about", "/contact", "/privacy", "/terms", "/cookies"}
	categoryRoutes = []string{"/breaking", "/india", "/world", "/politics", "/technology", "/business", "/sports", "/entertainment", "/health"}
)

type Source interface {
	ListPublished(ctx context.Context, since time.Time, limit int) ([]storage.PublishedArticle, error)
}

type Options struct {
	BaseURL   string // no trailing slash
	SiteName  string
	Language  string
	FeedItems int
}

type Generator struct {
	src  Source
	opts Options
	now  func() time.Time
	log  *slog.Logger
}

func New(src Source, opts Options, log *slog.Logger) *Generator {
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.FeedItems <= 0 {
		opts.FeedItems = 50
	}
	return &Generator{src: src, opts: opts, now: time.Now, log: log.With("component", "sitemap")}
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	NewsNS  string     `xml:"xmlns:news,attr,omitempty"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc        string     `xml:"loc"`
	LastMod    string     `xml:"lastmod,omitempty"`
	ChangeFreq string     `xml:"changefreq,omitempty"`
	Priority   string     `xml:"priority,omitempty"`
	News       *newsEntry `xml:"news:news,omitempty"`
}

type newsEntry struct {
	Publication struct {
		Name     string `xml:"news:name"`
		Language string `xml:"news:language"`
	} `xml:"news:publication"`
	PublicationDate string `xml:"news:publication_date"`
	Title           string `xml:"news:title"`
}

type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Xmlns    string         `xml:"xmlns,attr"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// Summary counts the entries of each generated file.
type Summary struct {
	Posts      int
	News       int
	Categories int
	Static     int
	FeedItems  int
}

// Build renders every file in memory, keyed by file name.
func (g *Generator) Build(ctx context.Context) (map[string][]byte, Summary, error) {
	articles, err := g.src.ListPublished(ctx, time.Time{}, 0)
	if err != nil {
		return nil, Summary{}, err
	}
	now := g.now().UTC()

	posts, recent := g.articleEntries(articles, now)
	categories := g.routeEntries(categoryRoutes)
	static := g.routeEntries(staticPages)

	files := make(map[string][]byte, 6)
	sets := map[string]urlSet{
		PostsFile:      {Xmlns: sitemapNS, URLs: posts},
		NewsFile:       {Xmlns: sitemapNS, NewsNS: newsNS, URLs: recent},
		CategoriesFile: {Xmlns: sitemapNS, URLs: categories},
		StaticFile:     {Xmlns: sitemapNS, URLs: static},
	}
	for name, set := range sets {
		if files[name], err = encode(set); err != nil {
			return nil, Summary{}, fmt.Errorf("encode %s: %w", name, err)
		}
	}

	index := sitemapIndex{Xmlns: sitemapNS}
	for _, name := range []string{NewsFile, PostsFile, CategoriesFile, StaticFile} {
		index.Sitemaps = append(index.Sitemaps, sitemapEntry{Loc: g.opts.BaseURL + "/" + name, LastMod: w3c(now)})
	}
	if files[IndexFile], err = encode(index); err != nil {
		return nil, Summary{}, fmt.Errorf("encode %s: %w", IndexFile, err)
	}

	feed, feedItems, err := g.feed(articles, now)
	if err != nil {
		return nil, Summary{}, err
	}
	files[FeedFile] = []byte(feed)

	return files, Summary{
		Posts:      len(posts),
		News:       len(recent),
		Categories: len(categories),
		Static:     len(static),
		FeedItems:  feedItems,
	}, nil
}

// Write builds the files and writes them into dir.
func (g *Generator) Write(ctx context.Context, dir string) (Summary, error) {
	files, sum, err := g.Build(ctx)
	if err != nil {
		return Summary{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Summary{}, err
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return Summary{}, fmt.Errorf("write %s: %w", name, err)
		}
	}

	g.log.Info("sitemaps generated", "dir", dir, "posts", sum.Posts, "news", sum.News,
		"categories", sum.Categories, "static", sum.Static, "feed_items", sum.FeedItems)
	return sum, nil
}

// articleEntries returns the posts entries and the news entries. Articles
// without a category are left out since they have no canonical URL, and only
// the first article with a given slug is kept.
func (g *Generator) articleEntries(articles []storage.PublishedArticle, now time.Time) ([]urlEntry, []urlEntry) {
	seen := make(map[string]bool, len(articles))
	cutoff := now.Add(-newsWindow)

	var posts, recent []urlEntry
	for _, a := range articles {
		if !a.CategorySlug.Valid || a.CategorySlug.String == "" || a.Slug == "" || seen[a.Slug] {
			continue
		}
		seen[a.Slug] = true

		loc := g.articleURL(a)
		lastmod := a.UpdatedAt
		if lastmod.IsZero() {
			lastmod = a.PublishedAt
		}
		posts = append(posts, urlEntry{Loc: loc, LastMod: w3c(lastmod), ChangeFreq: "weekly", Priority: "0.6"})

		if a.PublishedAt.After(cutoff) {
			n := &newsEntry{PublicationDate: w3c(a.PublishedAt), Title: a.Title}
			n.Publication.Name = g.opts.SiteName
			n.Publication.Language = g.opts.Language
			recent = append(recent, urlEntry{Loc: loc, News: n})
		}
	}
	return posts, recent
}

func (g *Generator) routeEntries(routes []string) []urlEntry {
	out := make([]urlEntry, 0, len(routes))
	for _, r := range routes {
		priority := "0.8"
		if r == "" {
			priority = "1.0"
		}
		out = append(out, urlEntry{Loc: g.opts.BaseURL + r, ChangeFreq: "daily", Priority: priority})
	}
	return out
}

func (g *Generator) articleURL(a storage.PublishedArticle) string {
	return fmt.Sprintf("%s/%s/%s", g.opts.BaseURL, a.CategorySlug.String, a.Slug)
}

func (g *Generator) feed(articles []storage.PublishedArticle, now time.Time) (string, int, error) {
	f := &feeds.Feed{
		Title:       g.opts.SiteName,
		Link:        &feeds.Link{Href: g.opts.BaseURL},
		Description: "Latest news from " + g.opts.SiteName,
		Created:     now,
	}

	for _, a := range articles {
		if len(f.Items) >= g.opts.FeedItems {
			break
		}
		if !a.CategorySlug.Valid || a.Slug == "" {
			continue
		}
		item := &feeds.Item{
			Id:          a.ID,
			Title:       a.Title,
			Link:        &feeds.Link{Href: g.articleURL(a)},
			Description: a.Excerpt.String,
			Created:     a.PublishedAt,
			Updated:     a.UpdatedAt,
		}
		if a.FeaturedImage.Valid && a.FeaturedImage.String != "" {
			item.Enclosure = &feeds.Enclosure{Url: a.FeaturedImage.String, Type: "image/jpeg", Length: "0"}
		}
		f.Items = append(f.Items, item)
	}

	out, err := f.ToRss()
	if err != nil {
		return "", 0, fmt.Errorf("render rss: %w", err)
	}
	return out, len(f.Items), nil
}

func encode(v interface{}) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func w3c(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
