// Package trigger starts the news generation workflow on GitHub Actions.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var ErrMissingToken = errors.New("missing GITHUB_PAT env var")

const defaultAPIURL = "https://api.github.com"

type Options struct {
	Token    string
	Owner    string
	Repo     string
	Workflow string // e.g. generate-news.yml
	Ref      string
}

// Client dispatches workflow_dispatch events.
type Client struct {
	opts   Options
	apiURL string
	http   *http.Client
	log    *slog.Logger
}

func New(opts Options, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Ref == "" {
		opts.Ref = "main"
	}
	return &Client{
		opts:   opts,
		apiURL: defaultAPIURL,
		http:   httpClient,
		log:    log.With("component", "trigger"),
	}
}

type dispatchBody struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs"`
}

// Dispatch starts the workflow for the given category selection. An empty
// selection means all categories.
func (c *Client) Dispatch(ctx context.Context, categories string) error {
	if c.opts.Token == "" {
		return ErrMissingToken
	}
	if categories == "" {
		categories = "all"
	}

	body, err := json.Marshal(dispatchBody{
		Ref:    c.opts.Ref,
		Inputs: map[string]string{"categories": categories},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%s/dispatches", c.apiURL, c.opts.Owner, c.opts.Repo, c.opts.Workflow)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("GitHub API Error: %d %s", resp.StatusCode, bytes.TrimSpace(text))
	}

	c.log.Info("workflow dispatched", "workflow", c.opts.Workflow, "ref", c.opts.Ref, "categories", categories)
	return nil
}
