// Package translate translates published articles through an
// OpenAI-compatible chat completion API (Groq by default).
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/newshub/internal/cache"
	"github.com/deusflow/newshub/internal/storage"
)

var (
	ErrMissingFields  = errors.New("missing required fields: title, content, targetLanguage")
	ErrNotConfigured  = errors.New("translation service not configured (missing GROQ_API_KEY)")
	ErrEmptyResponse  = errors.New("no content received from AI")
	ErrUnparsableJSON = errors.New("failed to parse translation response")
)

const provider = "groq"

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"ar": "Arabic",
	"hi": "Hindi",
	"ru": "Russian",
	"bn": "Bengali",
	"ta": "Tamil",
	"te": "Telugu",
	"mr": "Marathi",
	"gu": "Gujarati",
}

// LanguageName maps a language code to its English name. Unknown codes are
// returned as given.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

type Request struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	TargetLanguage string `json:"targetLanguage"`
}

type Result struct {
	TranslatedTitle   string `json:"translatedTitle"`
	TranslatedContent string `json:"translatedContent"`
	Language          string `json:"language"`
}

// Store persists translations across restarts. Optional.
type Store interface {
	GetTranslation(ctx context.Context, contentHash string) (storage.TranslationCacheItem, error)
	SetTranslation(ctx context.Context, item storage.TranslationCacheItem) error
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Translator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	memo    *cache.Cache[Result]
	store   Store
	log     *slog.Logger
}

// New returns a Translator. Without an API key every call fails with
// ErrNotConfigured.
func New(opts Options, store Store, log *slog.Logger) *Translator {
	t := &Translator{
		model:   opts.Model,
		timeout: opts.Timeout,
		memo:    cache.New[Result](24 * time.Hour),
		store:   store,
		log:     log.With("component", "translate"),
	}
	if opts.APIKey != "" {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		t.client = openai.NewClientWithConfig(cfg)
	}
	if t.timeout <= 0 {
		t.timeout = 30 * time.Second
	}
	return t
}

func (t *Translator) Configured() bool { return t.client != nil }

// Translate returns the article in the target language. Results are cached
// in memory and, when a store is set, in the database.
func (t *Translator) Translate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.TargetLanguage) == "" {
		return Result{}, ErrMissingFields
	}
	if t.client == nil {
		return Result{}, ErrNotConfigured
	}

	key := cache.Key(req.TargetLanguage, req.Title, req.Content)
	if res, ok := t.memo.Get(key); ok {
		return res, nil
	}
	if res, ok := t.fromStore(ctx, key, req.TargetLanguage); ok {
		t.memo.Set(key, res)
		return res, nil
	}

	res, err := t.complete(ctx, req)
	if err != nil {
		return Result{}, err
	}

	t.memo.Set(key, res)
	if t.store != nil {
		item := storage.TranslationCacheItem{
			ContentHash: key,
			Language:    req.TargetLanguage,
			Title:       res.TranslatedTitle,
			Content:     res.TranslatedContent,
			AIProvider:  provider,
		}
		if err := t.store.SetTranslation(ctx, item); err != nil {
			t.log.Warn("failed to persist translation", "error", err)
		}
	}
	return res, nil
}

func (t *Translator) fromStore(ctx context.Context, key, lang string) (Result, bool) {
	if t.store == nil {
		return Result{}, false
	}
	item, err := t.store.GetTranslation(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			t.log.Warn("translation cache lookup failed", "error", err)
		}
		return Result{}, false
	}
	return Result{TranslatedTitle: item.Title, TranslatedContent: item.Content, Language: lang}, true
}

func (t *Translator) complete(ctx context.Context, req Request) (Result, error) {
	lang := LanguageName(req.TargetLanguage)
	t.log.Info("translating article", "language", lang, "title", req.Title)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	system := fmt.Sprintf(`You are a professional translator. Translate the following news article from English to %s.
Maintain the HTML formatting exactly as provided. Only translate the text content, keeping all HTML tags (like <p>, <strong>, <a>) intact.
Return a JSON object with "translatedTitle" and "translatedContent" fields.`, lang)

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Translate to %s:\nTitle: %s\nContent: %s", lang, req.Title, req.Content)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("translation request: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Result{}, ErrEmptyResponse
	}

	var parsed struct {
		TranslatedTitle   string `json:"translatedTitle"`
		TranslatedContent string `json:"translatedContent"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnparsableJSON, err)
	}

	res := Result{
		TranslatedTitle:   SanitizeAIText(parsed.TranslatedTitle),
		TranslatedContent: SanitizeAIText(parsed.TranslatedContent),
		Language:          req.TargetLanguage,
	}
	if res.TranslatedTitle == "" {
		res.TranslatedTitle = req.Title
	}
	if res.TranslatedContent == "" {
		res.TranslatedContent = req.Content
	}
	return res, nil
}

var (
	parenNote   = regexp.MustCompile(`(?i)\(\s*note:[^)]*\)`)
	bracketNote = regexp.MustCompile(`(?i)\[\s*note:[^\]]*\]`)
)

// SanitizeAIText removes "Note: machine translation" style disclaimers that
// models add around a translation.
func SanitizeAIText(s string) string {
	s = parenNote.ReplaceAllString(s, "")
	s = bracketNote.ReplaceAllString(s, "")

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "note:") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
