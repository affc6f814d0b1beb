package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newshub/internal/logger"
	"github.com/deusflow/newshub/internal/storage"
)

type memStore struct {
	items map[string]storage.TranslationCacheItem
	sets  int
}

func (m *memStore) GetTranslation(_ context.Context, hash string) (storage.TranslationCacheItem, error) {
	item, ok := m.items[hash]
	if !ok {
		return storage.TranslationCacheItem{}, storage.ErrNotFound
	}
	return item, nil
}

func (m *memStore) SetTranslation(_ context.Context, item storage.TranslationCacheItem) error {
	m.sets++
	m.items[item.ContentHash] = item
	return nil
}

func groqServer(t *testing.T, answer string, calls *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3-70b-8192", body["model"])
		assert.Equal(t, map[string]interface{}{"type": "json_object"}, body["response_format"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": answer}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTranslator(srv *httptest.Server, store Store) *Translator {
	return New(Options{APIKey: "gsk-test", BaseURL: srv.URL, Model: "llama3-70b-8192"}, store, logger.Discard())
}

func TestTranslate(t *testing.T) {
	calls := 0
	srv := groqServer(t, `{"translatedTitle":"आरबीआई ने दर नहीं बदली","translatedContent":"<p>सामग्री</p>\nNote: machine translation."}`, &calls)
	store := &memStore{items: map[string]storage.TranslationCacheItem{}}
	tr := newTranslator(srv, store)

	req := Request{Title: "RBI keeps rate unchanged", Content: "<p>content</p>", TargetLanguage: "hi"}
	res, err := tr.Translate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Result{TranslatedTitle: "आरबीआई ने दर नहीं बदली", TranslatedContent: "<p>सामग्री</p>", Language: "hi"}, res)
	assert.Equal(t, 1, store.sets)

	again, err := tr.Translate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, res, again)
	assert.Equal(t, 1, calls, "second call served from memory")
}

func TestTranslate_UsesPersistentCache(t *testing.T) {
	calls := 0
	srv := groqServer(t, `{}`, &calls)
	store := &memStore{items: map[string]storage.TranslationCacheItem{}}

	first := newTranslator(srv, store)
	req := Request{Title: "t", Content: "c", TargetLanguage: "ta"}
	_, err := first.Translate(context.Background(), req)
	require.NoError(t, err)

	// a fresh process has an empty memory cache
	second := newTranslator(srv, store)
	_, err = second.Translate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestTranslate_FallsBackToOriginal(t *testing.T) {
	calls := 0
	srv := groqServer(t, `{"translatedTitle":""}`, &calls)
	tr := newTranslator(srv, nil)

	res, err := tr.Translate(context.Background(), Request{Title: "Title", Content: "<p>Body</p>", TargetLanguage: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "Title", res.TranslatedTitle)
	assert.Equal(t, "<p>Body</p>", res.TranslatedContent)
}

func TestTranslate_Errors(t *testing.T) {
	calls := 0
	srv := groqServer(t, `not json`, &calls)
	tr := newTranslator(srv, nil)
	ctx := context.Background()

	_, err := tr.Translate(ctx, Request{Title: "x", TargetLanguage: "hi"})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = tr.Translate(ctx, Request{Title: "x", Content: "y", TargetLanguage: "hi"})
	assert.ErrorIs(t, err, ErrUnparsableJSON)

	unconfigured := New(Options{}, nil, logger.Discard())
	assert.False(t, unconfigured.Configured())
	_, err = unconfigured.Translate(ctx, Request{Title: "x", Content: "y", TargetLanguage: "hi"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTranslate_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTranslator(srv, nil).Translate(context.Background(), Request{Title: "x", Content: "y", TargetLanguage: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "translation request")
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Hindi", LanguageName("hi"))
	assert.Equal(t, "Gujarati", LanguageName("GU"))
	assert.Equal(t, "Klingon", LanguageName("Klingon"))
}
