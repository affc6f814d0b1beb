package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ArticleContent is full article content
type ArticleContent struct {
	Title   string
	Content string
	URL     string
}

// siteSelectors lists paragraph selectors per news site, tried in order.
var siteSelectors = []struct {
	host      string
	selectors []string
}{
	{"timesofindia.indiatimes.com", []string{"div._s30J p", "div.Normal", "div.ga-headlines", "article p"}},
	{"economictimes.indiatimes.com", []string{"div.artText", "div.article_wrap p", "article p"}},
	{"bbc.co.uk", []string{"article [data-component='text-block'] p", "article p", "main p"}},
	{"bbc.com", []string{"article [data-component='text-block'] p", "article p", "main p"}},
	{"hindustantimes.com", []string{"div.storyDetails p", "div.detail p", "article p"}},
}

var genericSelectors = []string{
	"article p",
	".article p",
	".content p",
	".post-content p",
	".entry-content p",
	"main p",
	"#content p",
	"p",
}

// Boilerplate that news sites put between paragraphs.
var junkPhrases = []string{
	"Read also:", "Also read:", "Also Read |", "Watch:", "Listen:",
	"Follow us on", "Click here to", "Subscribe to our newsletter",
	"Download the app", "Share this article", "Print this article",
	"Catch all the Business News", "Get the latest news",
}

var junkIndicators = []string{
	"cookie", "advertisement", "subscribe", "sign in", "follow us", "click here", "download the",
}

type Scraper struct {
	client *http.Client
	log    *slog.Logger
}

func New(client *http.Client, log *slog.Logger) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Scraper{client: client, log: log.With("component", "scraper")}
}

// ExtractFullArticle gets full text of article by URL
func (s *Scraper) ExtractFullArticle(ctx context.Context, url string) (*ArticleContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; newshub/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	content := cleanContent(extractContent(doc, url))
	if content == "" {
		return nil, fmt.Errorf("can't get content")
	}

	return &ArticleContent{
		Title:   extractTitle(doc),
		Content: content,
		URL:     url,
	}, nil
}

// Enrich returns the scraped body when it is longer than current, else current.
func (s *Scraper) Enrich(ctx context.Context, url, current string) string {
	article, err := s.ExtractFullArticle(ctx, url)
	if err != nil {
		s.log.Warn("can't get full content", "url", url, "error", err)
		return current
	}
	if len(article.Content) <= len(current) {
		return current
	}
	s.log.Debug("got full content", "url", url, "chars", len(article.Content))
	return article.Content
}

func extractContent(doc *goquery.Document, url string) string {
	for _, site := range siteSelectors {
		if strings.Contains(url, site.host) {
			if text := collectParagraphs(doc, site.selectors, 10, 1); text != "" {
				return text
			}
			break
		}
	}
	// If we find 3 paragraphs, it's enough
	return collectParagraphs(doc, genericSelectors, 20, 3)
}

func collectParagraphs(doc *goquery.Document, selectors []string, minLen, enough int) string {
	var paragraphs []string
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > minLen {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= enough {
			break
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func extractTitle(doc *goquery.Document) string {
	for _, selector := range []string{"h1", "title", ".article-title", ".headline"} {
		if title := strings.TrimSpace(doc.Find(selector).First().Text()); title != "" {
			return title
		}
	}
	return ""
}

// PlainText strips markup from an HTML fragment and collapses whitespace.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(fragment, "<", " <")))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// cleanContent drops boilerplate lines and keeps paragraphs of useful length.
func cleanContent(content string) string {
	if content == "" {
		return ""
	}

	for _, phrase := range junkPhrases {
		content = strings.ReplaceAll(content, phrase, "")
	}

	var kept []string
	for _, paragraph := range strings.Split(content, "\n\n") {
		paragraph = strings.Join(strings.Fields(paragraph), " ")
		if len(paragraph) <= 30 {
			continue
		}
		lower := strings.ToLower(paragraph)
		junk := false
		for _, indicator := range junkIndicators {
			if strings.Contains(lower, indicator) {
				junk = true
				break
			}
		}
		if !junk {
			kept = append(kept, paragraph)
		}
	}

	return strings.TrimSpace(strings.Join(kept, "\n\n"))
}
