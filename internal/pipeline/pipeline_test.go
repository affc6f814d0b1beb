package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newshub/internal/catalog"
	"github.com/deusflow/newshub/internal/category"
	"github.com/deusflow/newshub/internal/illustrator"
	"github.com/deusflow/newshub/internal/logger"
	"github.com/deusflow/newshub/internal/metrics"
	"github.com/deusflow/newshub/internal/news"
	"github.com/deusflow/newshub/internal/publisher"
	"github.com/deusflow/newshub/internal/rewriter"
	"github.com/deusflow/newshub/internal/rss"
	"github.com/deusflow/newshub/internal/storage"
)

// memStore backs the window, the publisher and the category resolver.
type memStore struct {
	articles   map[string]*news.Article
	categories map[string]news.Category
	windowErr  error
}

func newMemStore() *memStore {
	return &memStore{articles: map[string]*news.Article{}, categories: map[string]news.Category{}}
}

func (m *memStore) RecentWindow(_ context.Context, limit int) ([]news.WindowEntry, error) {
	if m.windowErr != nil {
		return nil, m.windowErr
	}
	rows := m.sorted(func(*news.Article) bool { return true })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]news.WindowEntry, 0, len(rows))
	for _, a := range rows {
		out = append(out, news.WindowEntry{ID: a.ID, Title: a.Title, SourceTitle: a.SourceTitle})
	}
	return out, nil
}

func (m *memStore) sorted(keep func(*news.Article) bool) []*news.Article {
	var rows []*news.Article
	for _, a := range m.articles {
		if keep(a) {
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PublishedAt.After(rows[j].PublishedAt) })
	return rows
}

func (m *memStore) InsertArticle(_ context.Context, a news.Article) error {
	for _, existing := range m.articles {
		if existing.Slug == a.Slug {
			return storage.ErrConflict
		}
	}
	m.articles[a.ID] = &a
	return nil
}

func (m *memStore) UpdateArticle(_ context.Context, id string, u storage.ArticleUpdate) error {
	a, ok := m.articles[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.Title, a.Content, a.Excerpt, a.FeaturedImage, a.UpdatedAt = u.Title, u.Content, u.Excerpt, u.FeaturedImage, u.UpdatedAt
	a.IsBreaking = true
	return nil
}

func (m *memStore) ListBreaking(context.Context) ([]storage.BreakingRow, error) {
	var out []storage.BreakingRow
	for _, a := range m.sorted(func(a *news.Article) bool { return a.IsBreaking }) {
		out = append(out, storage.BreakingRow{ID: a.ID, Title: a.Title, PublishedAt: a.PublishedAt})
	}
	return out, nil
}

func (m *memStore) Demote(_ context.Context, ids []string) (int64, error) {
	for _, id := range ids {
		m.articles[id].IsBreaking = false
	}
	return int64(len(ids)), nil
}

func (m *memStore) FindCategoryByName(_ context.Context, name string) (news.Category, error) {
	c, ok := m.categories[name]
	if !ok {
		return news.Category{}, storage.ErrNotFound
	}
	return c, nil
}

func (m *memStore) CreateCategory(_ context.Context, name, slug string) (news.Category, error) {
	if _, ok := m.categories[name]; ok {
		return news.Category{}, storage.ErrConflict
	}
	c := news.Category{ID: "cat-" + slug, Name: name, Slug: slug}
	m.categories[name] = c
	return c, nil
}

func (m *memStore) CountCategories(context.Context) (int, error) { return len(m.categories), nil }

func (m *memStore) bySlug(slug string) *news.Article {
	for _, a := range m.articles {
		if a.Slug == slug {
			return a
		}
	}
	return nil
}

type staticFetcher struct{ items []news.RawItem }

func (f staticFetcher) FetchAll(context.Context, []rss.Feed) []news.RawItem { return f.items }

// echoRewriter keeps the feed title unless headlines maps it to a new one.
type echoRewriter struct {
	calls     int
	failOn    map[string]error
	category  string
	prompt    string
	headlines map[string]string
}

func (r *echoRewriter) Rewrite(_ context.Context, item news.RawItem) (*news.ProcessedArticle, error) {
	r.calls++
	if err := r.failOn[item.Title]; err != nil {
		return nil, err
	}
	cat := item.Category
	if r.category != "" {
		cat = r.category
	}
	title := item.Title
	if h, ok := r.headlines[item.Title]; ok {
		title = h
	}
	return &news.ProcessedArticle{
		Title:       title,
		Excerpt:     "excerpt",
		Content:     fmt.Sprintf("<p>%s rewritten, run %d</p>", item.Title, r.calls),
		Tags:        []string{"news"},
		Category:    cat,
		ImagePrompt: r.prompt,
		OriginalURL: item.Link,
		Source:      item.Source,
	}, nil
}

type recordingIllustrator struct {
	inputs []illustrator.PromptInput
	err    error
}

func (il *recordingIllustrator) Illustrate(_ context.Context, in illustrator.PromptInput, slug string) (string, error) {
	il.inputs = append(il.inputs, in)
	if il.err != nil {
		return "", il.err
	}
	return "https://pollinations.ai/p/" + slug + "?seed=7", nil
}

type recordingNotifier struct{ messages []string }

func (n *recordingNotifier) SendMessage(_ context.Context, text string) error {
	n.messages = append(n.messages, text)
	return nil
}

type harness struct {
	store    *memStore
	rewriter *echoRewriter
	images   *recordingIllustrator
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	sleeps   []time.Duration
	pipeline *Pipeline
}

func newHarness(t *testing.T, items ...news.RawItem) *harness {
	t.Helper()
	log := logger.Discard()
	h := &harness{
		store:    newMemStore(),
		rewriter: &echoRewriter{},
		images:   &recordingIllustrator{},
		notifier: &recordingNotifier{},
		metrics:  metrics.New(),
	}
	h.pipeline = New(Deps{
		Window:      h.store,
		Fetcher:     staticFetcher{items: items},
		Rewriter:    h.rewriter,
		Illustrator: h.images,
		Catalog:     catalog.New(rand.NewSource(1)),
		Categories:  category.NewResolver(h.store, time.Hour, log),
		Publisher:   publisher.New(h.store, publisher.Options{BreakingCap: 30, DomesticCategory: "India"}, log),
		Metrics:     h.metrics,
		Notifier:    h.notifier,
	}, Options{DedupWindow: 100, DedupThreshold: 0.6, ItemDelay: 5 * time.Second}, log)
	h.pipeline.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func TestRun_RBIBusinessArticle(t *testing.T) {
	item := news.RawItem{
		Title:    "RBI keeps repo rate unchanged at 6.5%",
		Content:  "The Reserve Bank of India held rates steady.",
		Link:     "https://economictimes.indiatimes.com/rbi",
		Source:   "Economic Times",
		Category: "Business",
	}
	h := newHarness(t, item)
	h.rewriter.prompt = "Reserve Bank of India headquarters in Mumbai at dusk, wide shot"

	report, err := h.pipeline.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, "all", report.Selection)

	row := h.store.bySlug("rbi-keeps-repo-rate-unchanged-at-65")
	require.NotNil(t, row)
	assert.True(t, row.IsBreaking)
	assert.False(t, row.IsFeatured)
	assert.Equal(t, news.StatusPublished, row.Status)
	require.NotNil(t, row.CategoryID)
	assert.Equal(t, "cat-business", *row.CategoryID)
	assert.Equal(t, news.Category{ID: "cat-business", Name: "Business", Slug: "business"}, h.store.categories["Business"])
	assert.True(t, strings.HasPrefix(row.FeaturedImage, "https://pollinations.ai/p/"))

	require.Len(t, h.images.inputs, 1)
	assert.True(t, h.images.inputs[0].IsPrebuilt())
	assert.Empty(t, h.sleeps, "no delay after the last item")

	require.Len(t, h.notifier.messages, 1)
	assert.Contains(t, h.notifier.messages[0], "Inserted: 1")
	assert.True(t, h.metrics.Healthy())
}

func TestRun_RerunUpdatesInPlace(t *testing.T) {
	items := []news.RawItem{
		{Title: "Monsoon reaches Kerala two days early", Category: "India"},
		{Title: "Global markets rally after Fed decision", Category: "World"},
	}
	h := newHarness(t, items...)
	ctx := context.Background()

	first, err := h.pipeline.Run(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	slugs := map[string]string{}
	for id, a := range h.store.articles {
		slugs[id] = a.Slug
	}

	second, err := h.pipeline.Run(ctx, "all")
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 2, second.Updated)

	require.Len(t, h.store.articles, 2)
	for id, a := range h.store.articles {
		assert.Equal(t, slugs[id], a.Slug)
		assert.False(t, strings.HasSuffix(a.Content, "run 1</p>") || strings.HasSuffix(a.Content, "run 2</p>"),
			"content refreshed on rerun: %s", a.Content)
	}
	kerala := h.store.bySlug("monsoon-reaches-kerala-two-days-early")
	require.NotNil(t, kerala)
	assert.True(t, kerala.IsFeatured)
	assert.Len(t, h.sleeps, 2, "one pause between the two items of each run")
}

func TestRun_SameRunDuplicateBecomesUpdate(t *testing.T) {
	h := newHarness(t,
		news.RawItem{Title: "Sensex hits record high", Category: "Business"},
		news.RawItem{Title: "Sensex hits a record high", Category: "Business"},
	)

	report, err := h.pipeline.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Updated)
	assert.Len(t, h.store.articles, 1)
	assert.Equal(t, report.Published[0].ID, report.Published[1].ID)
}

func TestRun_SameRunDuplicateWithRewrittenHeadline(t *testing.T) {
	h := newHarness(t,
		news.RawItem{Title: "RBI keeps repo rate unchanged", Source: "Source A", Category: "Business"},
		news.RawItem{Title: "RBI keeps repo rate unchanged", Source: "Source B", Category: "Business"},
	)
	h.rewriter.headlines = map[string]string{
		"RBI keeps repo rate unchanged": "Reserve Bank of India Holds Repo Rate Steady at 6.5 Percent",
	}

	report, err := h.pipeline.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Updated)
	require.Len(t, h.store.articles, 1)

	row := h.store.bySlug("reserve-bank-of-india-holds-repo-rate-steady-at-65-percent")
	require.NotNil(t, row)
	assert.Equal(t, "RBI keeps repo rate unchanged", row.SourceTitle)
}

func TestRun_RerunWithRewrittenHeadlinesUpdatesInPlace(t *testing.T) {
	items := []news.RawItem{
		{Title: "Monsoon reaches Kerala two days early", Category: "India"},
		{Title: "Global markets rally after Fed decision", Category: "World"},
	}
	h := newHarness(t, items...)
	h.rewriter.headlines = map[string]string{
		"Monsoon reaches Kerala two days early":   "Southwest Rains Arrive Ahead of Schedule in Southern State",
		"Global markets rally after Fed decision": "Stocks Climb Worldwide as US Central Bank Holds Steady",
	}
	ctx := context.Background()

	first, err := h.pipeline.Run(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 2, first.Inserted)

	slugs := map[string]string{}
	for id, a := range h.store.articles {
		slugs[id] = a.Slug
	}

	second, err := h.pipeline.Run(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 2, second.Updated)

	require.Len(t, h.store.articles, 2)
	for id, a := range h.store.articles {
		assert.Equal(t, slugs[id], a.Slug)
	}
}

func TestRun_RewriteFailureSkipsItemOnly(t *testing.T) {
	h := newHarness(t,
		news.RawItem{Title: "First story about the budget", Category: "Business"},
		news.RawItem{Title: "Cricket team wins the final", Category: "Sports"},
		news.RawItem{Title: "", Category: "World"},
	)
	h.rewriter.failOn = map[string]error{
		"First story about the budget": fmt.Errorf("rewrite: %w", rewriter.ErrMalformedResponse),
	}

	report, err := h.pipeline.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, h.rewriter.calls)
	assert.Len(t, h.sleeps, 2)
	assert.NotNil(t, h.store.bySlug("cricket-team-wins-the-final"))
}

func TestRun_ImageFailureUsesCatalog(t *testing.T) {
	h := newHarness(t, news.RawItem{Title: "New vaccine approved", Category: "Health"})
	h.images.err = illustrator.ErrEmptyPrompt

	_, err := h.pipeline.Run(context.Background(), "")
	require.NoError(t, err)

	row := h.store.bySlug("new-vaccine-approved")
	require.NotNil(t, row)
	assert.Contains(t, catalog.Images("Health"), row.FeaturedImage)
	assert.False(t, h.images.inputs[0].IsPrebuilt(), "no image prompt falls back to the title")
}

func TestRun_SelectionFiltersCategories(t *testing.T) {
	h := newHarness(t,
		news.RawItem{Title: "Election results announced", Category: "Politics"},
		news.RawItem{Title: "New smartphone launched", Category: "Technology"},
	)

	report, err := h.pipeline.Run(context.Background(), "technology")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Selected)
	assert.NotNil(t, h.store.bySlug("new-smartphone-launched"))
	assert.Nil(t, h.store.bySlug("election-results-announced"))
}

func TestRun_MaintenanceDemotesOverflow(t *testing.T) {
	h := newHarness(t, news.RawItem{Title: "Fresh headline of the hour", Category: "World"})
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 35; i++ {
		id := fmt.Sprintf("old-%02d", i)
		h.store.articles[id] = &news.Article{ID: id, Title: fmt.Sprintf("zz%d", i), Slug: id, IsBreaking: true, PublishedAt: base.Add(-time.Duration(i) * time.Minute)}
	}

	report, err := h.pipeline.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 6, report.Demoted)

	breaking, _ := h.store.ListBreaking(context.Background())
	assert.Len(t, breaking, 30)
	for i := 29; i < 35; i++ {
		assert.False(t, h.store.articles[fmt.Sprintf("old-%02d", i)].IsBreaking)
	}
}

func TestRun_WindowFailureEndsRun(t *testing.T) {
	h := newHarness(t, news.RawItem{Title: "Anything", Category: "World"})
	h.store.windowErr = errors.New("connection refused")

	_, err := h.pipeline.Run(context.Background(), "")
	require.Error(t, err)
	assert.Zero(t, h.rewriter.calls)
	assert.False(t, h.metrics.Healthy())
	require.Len(t, h.notifier.messages, 1)
	assert.Contains(t, h.notifier.messages[0], "connection refused")
}

func TestRun_CancelledContextStops(t *testing.T) {
	h := newHarness(t,
		news.RawItem{Title: "One", Category: "World"},
		news.RawItem{Title: "Two", Category: "World"},
	)
	ctx, cancel := context.WithCancel(context.Background())
	h.pipeline.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := h.pipeline.Run(ctx, "")
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Equal(t, 1, h.rewriter.calls)
}
