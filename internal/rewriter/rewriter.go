// Package rewriter turns a raw feed item into a long-form HTML article using a
// generative text model.
package rewriter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/googleapi"

	"github.com/deusflow/newshub/internal/news"
	"github.com/deusflow/newshub/internal/retry"
)

var (
	// ErrRateLimited marks a throttling response from the model provider.
	ErrRateLimited = errors.New("model rate limited")
	// ErrMalformedResponse means the model answered but not with a usable article.
	ErrMalformedResponse = errors.New("malformed model response")
)

// Generator is a text model that answers one prompt under a system instruction.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type Rewriter struct {
	gen    Generator
	policy retry.Policy
	log    *slog.Logger
}

// New builds a Rewriter that retries rate-limited calls up to maxAttempts
// times in total, waiting backoff between attempts.
func New(gen Generator, maxAttempts int, backoff time.Duration, log *slog.Logger) *Rewriter {
	log = log.With("component", "rewriter")
	return &Rewriter{
		gen: gen,
		policy: retry.Policy{
			MaxAttempts: maxAttempts,
			Delay:       backoff,
			Retryable:   IsRateLimit,
			OnRetry: func(attempt int, err error, wait time.Duration) {
				log.Warn("rate limit hit, waiting", "attempt", attempt, "wait", wait, "error", err)
			},
		},
		log: log,
	}
}

// Rewrite returns the processed article or an error. Rate-limit errors are
// retried under the policy; any other failure, including a response that
// does not parse, is returned at once.
func (r *Rewriter) Rewrite(ctx context.Context, item news.RawItem) (*news.ProcessedArticle, error) {
	prompt := userPrompt(item.Title, item.Content)

	var raw string
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		out, err := r.gen.Generate(ctx, systemPrompt, prompt)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite %q: %w", item.Title, err)
	}

	art, err := parseArticle(raw)
	if err != nil {
		return nil, fmt.Errorf("rewrite %q: %w", item.Title, err)
	}

	art.Category = chooseCategory(item.Category, art.Category)
	art.OriginalURL = item.Link
	art.Source = item.Source

	if words := WordCount(art.Content); words < 1500 || words > 1700 {
		r.log.Info("article length outside target", "title", art.Title, "words", words)
	}
	return art, nil
}

// IsRateLimit reports whether err is a throttling or overload signal.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code == http.StatusServiceUnavailable
	}
	msg := err.Error()
	for _, marker := range []string{"429", "503", "RESOURCE_EXHAUSTED", "UNAVAILABLE"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func parseArticle(raw string) (*news.ProcessedArticle, error) {
	var art news.ProcessedArticle
	if err := json.Unmarshal([]byte(stripFences(raw)), &art); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	art.Title = strings.TrimSpace(art.Title)
	art.Content = sanitizeHTML(art.Content)
	if art.Title == "" || strings.TrimSpace(art.Content) == "" {
		return nil, fmt.Errorf("%w: missing title or content", ErrMalformedResponse)
	}

	art.Excerpt = strings.TrimSpace(art.Excerpt)
	if art.Excerpt == "" {
		art.Excerpt = excerptFrom(art.Content)
	}
	if art.Tags == nil {
		art.Tags = []string{}
	}
	art.ImagePrompt = strings.TrimSpace(art.ImagePrompt)
	art.SecondaryCategory = strings.TrimSpace(art.SecondaryCategory)
	return &art, nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// chooseCategory prefers the feed's category, then the model's, then the default.
func chooseCategory(feed, model string) string {
	if c, ok := news.CanonicalCategory(feed); ok {
		return c
	}
	if c, ok := news.CanonicalCategory(model); ok {
		return c
	}
	return news.DefaultCategory
}

var (
	mdHeading = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+(.+?)[ \t]*$`)
	mdBold    = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// sanitizeHTML converts Markdown the model sometimes leaks into HTML.
func sanitizeHTML(content string) string {
	content = mdHeading.ReplaceAllString(content, "<h2>$1</h2>")
	content = mdBold.ReplaceAllString(content, "<strong>$1</strong>")
	return strings.TrimSpace(content)
}

// WordCount counts words in the visible text of an HTML fragment.
func WordCount(html string) int {
	// pad tags so adjacent blocks do not glue words together
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(html, "<", " <")))
	if err != nil {
		return len(strings.Fields(html))
	}
	return len(strings.Fields(doc.Text()))
}

func excerptFrom(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(doc.Find("p").First().Text())
	if text == "" {
		text = strings.Join(strings.Fields(doc.Text()), " ")
	}
	if r := []rune(text); len(r) > 200 {
		text = strings.TrimSpace(string(r[:200])) + "…"
	}
	return text
}
