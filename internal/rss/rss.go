package rss

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/newshub/internal/news"
	"github.com/deusflow/newshub/internal/scraper"
)

// Feed is one configured RSS endpoint.
type Feed struct {
	Category string `yaml:"category"`
	URL      string `yaml:"url"`
	Source   string `yaml:"source"`
}

// FeedsConfig is YAML config structure
//
//	feeds:
//	  - category: India
//	    url: https://...
//	    source: Times of India
type FeedsConfig struct {
	Feeds []Feed `yaml:"feeds"`
}

// LoadFeeds reads RSS feeds list from YAML file
func LoadFeeds(path string) ([]Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for i, fd := range cfg.Feeds {
		if fd.URL == "" {
			return nil, fmt.Errorf("feed %d in %s has no url", i, path)
		}
	}
	return cfg.Feeds, nil
}

// thinContent is the length below which a feed body is worth scraping.
const thinContent = 400

type Fetcher struct {
	parser  *gofeed.Parser
	scraper *scraper.Scraper // nil disables full-text enrichment
	timeout time.Duration
	log     *slog.Logger
}

func NewFetcher(s *scraper.Scraper, timeout time.Duration, log *slog.Logger) *Fetcher {
	return &Fetcher{
		parser:  gofeed.NewParser(),
		scraper: s,
		timeout: timeout,
		log:     log.With("component", "rss"),
	}
}

// FetchAll downloads and parses all feeds. A feed that fails is logged and
// skipped. Items keep their order within a feed.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []Feed) []news.RawItem {
	var all []news.RawItem
	ok := 0

	for _, fd := range feeds {
		items, err := f.fetch(ctx, fd)
		if err != nil {
			f.log.Warn("error parsing RSS", "url", fd.URL, "source", fd.Source, "error", err)
			continue
		}
		all = append(all, items...)
		ok++
		f.log.Info("loaded feed", "source", fd.Source, "items", len(items))
	}

	f.log.Info("processed RSS feeds", "ok", ok, "total", len(feeds), "items", len(all))
	return all
}

func (f *Fetcher) fetch(ctx context.Context, fd Feed) ([]news.RawItem, error) {
	fctx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	parsed, err := f.parser.ParseURLWithContext(fd.URL, fctx)
	if err != nil {
		return nil, err
	}

	items := make([]news.RawItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		body := it.Content
		if strings.TrimSpace(body) == "" {
			body = it.Description
		}
		raw := news.RawItem{
			Title:    strings.TrimSpace(scraper.PlainText(it.Title)),
			Content:  scraper.PlainText(body),
			Link:     strings.TrimSpace(it.Link),
			Source:   fd.Source,
			Category: fd.Category,
		}
		if it.PublishedParsed != nil {
			raw.Published = *it.PublishedParsed
		}
		if f.scraper != nil && raw.Link != "" && len(raw.Content) < thinContent {
			raw.Content = f.scraper.Enrich(ctx, raw.Link, raw.Content)
		}
		items = append(items, raw)
	}
	return items, nil
}

// ParseSelection splits a category selection ("", "all", "India", "India,World").
// An empty result means everything.
func ParseSelection(selection string) []string {
	selection = strings.TrimSpace(selection)
	if selection == "" || strings.EqualFold(selection, "all") {
		return nil
	}
	var terms []string
	for _, part := range strings.Split(selection, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.EqualFold(part, "all") {
			return nil
		}
		terms = append(terms, part)
	}
	return terms
}

// Select keeps items whose category matches the selection case-insensitively.
// When nothing matches, it falls back to a loose match on category or title
// containing any of the selected terms.
func Select(items []news.RawItem, selection string) []news.RawItem {
	terms := ParseSelection(selection)
	if len(terms) == 0 {
		return items
	}

	var out []news.RawItem
	for _, it := range items {
		for _, term := range terms {
			if strings.EqualFold(it.Category, term) {
				out = append(out, it)
				break
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, it := range items {
		cat, title := strings.ToLower(it.Category), strings.ToLower(it.Title)
		for _, term := range terms {
			term = strings.ToLower(term)
			if strings.Contains(cat, term) || strings.Contains(title, term) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}
