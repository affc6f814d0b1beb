// Package illustrator resolves an article to a generated image URL.
package illustrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"

	"github.com/deusflow/newshub/internal/ratelimit"
)

var ErrEmptyPrompt = errors.New("empty image prompt")

type promptKind int

const (
	kindRawTitle promptKind = iota
	kindPrebuilt
)

// PromptInput is either a bare title that needs the style template, or a
// descriptive prompt that is used as written.
type PromptInput struct {
	kind promptKind
	text string
}

func RawTitle(title string) PromptInput { return PromptInput{kind: kindRawTitle, text: title} }

func PrebuiltPrompt(prompt string) PromptInput { return PromptInput{kind: kindPrebuilt, text: prompt} }

func (in PromptInput) IsPrebuilt() bool { return in.kind == kindPrebuilt }

func (in PromptInput) Text() string { return in.text }

const (
	visualStyle    = "realistic, cinematic lighting, 8k, news photo style, highly detailed, photorealistic, depth of field"
	titleNegatives = "--no text --no newspaper --no magazine --no collage --no writing"
	promptBanned   = "--no text --no newspaper --no magazine --no writing"
)

// BuildPrompt renders the final image prompt.
func BuildPrompt(in PromptInput) (string, error) {
	text := strings.TrimSpace(in.text)
	if text == "" {
		return "", ErrEmptyPrompt
	}
	if in.kind == kindPrebuilt {
		return text + " " + promptBanned, nil
	}
	return text + ", " + visualStyle + " " + titleNegatives, nil
}

type Options struct {
	BaseURL string // e.g. https://pollinations.ai/p/
	Width   int
	Height  int
	Model   string
}

type Illustrator struct {
	opts   Options
	client *http.Client
	pacer  *ratelimit.Pacer
	seed   func() int
	log    *slog.Logger
}

func New(opts Options, client *http.Client, pacer *ratelimit.Pacer, log *slog.Logger) *Illustrator {
	if client == nil {
		client = http.DefaultClient
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	return &Illustrator{
		opts:   opts,
		client: client,
		pacer:  pacer,
		seed:   func() int { return rand.Intn(999999) },
		log:    log.With("component", "illustrator"),
	}
}

// URL builds the image URL for a rendered prompt and seed.
func (il *Illustrator) URL(prompt string, seed int) string {
	q := url.Values{}
	q.Set("width", fmt.Sprint(il.opts.Width))
	q.Set("height", fmt.Sprint(il.opts.Height))
	q.Set("model", il.opts.Model)
	q.Set("seed", fmt.Sprint(seed))
	return il.opts.BaseURL + url.PathEscape(prompt) + "?" + q.Encode()
}

// Illustrate returns an image URL for the input. The URL is fetched once so
// the image service renders and caches it. A failed pre-warm is logged and
// the URL is returned anyway. Only an empty prompt is an error.
func (il *Illustrator) Illustrate(ctx context.Context, in PromptInput, slug string) (string, error) {
	prompt, err := BuildPrompt(in)
	if err != nil {
		return "", err
	}

	imageURL := il.URL(prompt, il.seed())
	il.log.Info("generating image", "slug", slug, "prebuilt", in.IsPrebuilt(), "url", imageURL)

	if err := il.prewarm(ctx, imageURL); err != nil {
		il.log.Warn("image pre-warm failed, returning URL anyway", "slug", slug, "error", err)
	}
	return imageURL, nil
}

func (il *Illustrator) prewarm(ctx context.Context, imageURL string) error {
	if il.pacer != nil {
		if err := il.pacer.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return err
	}
	resp, err := il.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("image service returned %d", resp.StatusCode)
	}
	return nil
}
