package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newshub/internal/config"
	"github.com/deusflow/newshub/internal/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		GeminiModel:        "gemini-2.0-flash-exp",
		RewriteMaxAttempts: 3,
		FeedsConfigPath:    "../../configs/feeds.yaml",
		ItemDelay:          5 * time.Second,
		DedupWindow:        100,
		DedupThreshold:     0.6,
		BreakingCap:        30,
		HTTPAddr:           ":0",
		RequestTimeout:     time.Second,
	}
}

func TestPipeline_MissingCredentials(t *testing.T) {
	a := New(testConfig(), logger.Discard())
	defer a.Close()

	_, err := a.Pipeline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg := testConfig()
	cfg.DatabaseURL = "postgres://localhost/none"
	_, err = New(cfg, logger.Discard()).Pipeline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestStore_RequiresURL(t *testing.T) {
	a := New(testConfig(), logger.Discard())
	_, err := a.Store(context.Background())
	assert.Error(t, err)

	_, err = a.Sitemap(context.Background())
	assert.Error(t, err)
	_, err = a.Categories(context.Background())
	assert.Error(t, err)
	_, err = a.ImageRegenerator(context.Background(), true)
	assert.Error(t, err)
}

func TestServer_WithoutDatabase(t *testing.T) {
	a := New(testConfig(), logger.Discard())
	srv := a.Server(context.Background())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/trigger-github", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Missing GITHUB_PAT env var")
}

func TestDescribe(t *testing.T) {
	a := New(testConfig(), logger.Discard())
	assert.Equal(t, "model=gemini-2.0-flash-exp feeds=../../configs/feeds.yaml delay=5s window=100 threshold=0.60 cap=30", a.Describe())
}
