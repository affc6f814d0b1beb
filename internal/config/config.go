// Package config loads runtime settings from the environment (and .env files).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Store
	DatabaseURL string

	// Gemini settings
	GeminiAPIKey       string
	GeminiModel        string
	RewriteMaxAttempts int
	RewriteBackoff     time.Duration

	// RSS settings
	FeedsConfigPath string
	ScrapeFullText  bool // fetch the article page when the feed body is thin

	// Pipeline behaviour
	ItemDelay        time.Duration // pause after every processed item
	DedupWindow      int
	DedupThreshold   float64
	BreakingCap      int
	DomesticCategory string
	AuthorID         string

	// Image generation
	ImageBaseURL string
	ImageWidth   int
	ImageHeight  int
	ImageModel   string

	// Remote trigger (GitHub workflow dispatch)
	GitHubToken    string
	GitHubOwner    string
	GitHubRepo     string
	GitHubWorkflow string
	GitHubRef      string

	// Translation (Groq, OpenAI compatible)
	GroqAPIKey  string
	GroqModel   string
	GroqBaseURL string

	// Operator notifications
	TelegramToken  string
	TelegramChatID string

	// HTTP + site
	HTTPAddr string
	SiteURL  string
	SiteName string

	// App settings
	LogLevel       string
	RequestTimeout time.Duration
}

// Load reads .env files (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &Config{
		// Default values
		GeminiModel:        "gemini-2.0-flash-exp",
		RewriteMaxAttempts: 3,
		RewriteBackoff:     20 * time.Second,
		FeedsConfigPath:    "configs/feeds.yaml",
		ItemDelay:          5 * time.Second,
		DedupWindow:        100,
		DedupThreshold:     0.6,
		BreakingCap:        30,
		DomesticCategory:   "India",
		ImageBaseURL:       "https://pollinations.ai/p/",
		ImageWidth:         800,
		ImageHeight:        400,
		ImageModel:         "flux",
		GitHubWorkflow:     "generate-news.yml",
		GitHubRef:          "main",
		GroqModel:          "llama3-70b-8192",
		GroqBaseURL:        "https://api.groq.com/openai/v1",
		HTTPAddr:           ":8080",
		SiteURL:            "https://nonamenews.site",
		SiteName:           "NoNameNews",
		LogLevel:           "info",
		RequestTimeout:     30 * time.Second,
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.RewriteMaxAttempts = getEnvIntOrDefault("REWRITE_MAX_ATTEMPTS", cfg.RewriteMaxAttempts)
	cfg.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", cfg.FeedsConfigPath)
	cfg.ScrapeFullText = os.Getenv("SCRAPE_FULL_TEXT") == "true"
	cfg.DedupWindow = getEnvIntOrDefault("DEDUP_WINDOW", cfg.DedupWindow)
	cfg.BreakingCap = getEnvIntOrDefault("BREAKING_CAP", cfg.BreakingCap)
	cfg.DomesticCategory = getEnvOrDefault("DOMESTIC_CATEGORY", cfg.DomesticCategory)
	cfg.AuthorID = os.Getenv("AUTHOR_ID")

	cfg.ImageBaseURL = getEnvOrDefault("IMAGE_BASE_URL", cfg.ImageBaseURL)
	cfg.ImageModel = getEnvOrDefault("IMAGE_MODEL", cfg.ImageModel)

	cfg.GitHubToken = os.Getenv("GITHUB_PAT")
	cfg.GitHubOwner = os.Getenv("GITHUB_OWNER")
	cfg.GitHubRepo = os.Getenv("GITHUB_REPO")
	cfg.GitHubWorkflow = getEnvOrDefault("GITHUB_WORKFLOW", cfg.GitHubWorkflow)
	cfg.GitHubRef = getEnvOrDefault("GITHUB_REF", cfg.GitHubRef)

	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	cfg.GroqModel = getEnvOrDefault("GROQ_MODEL", cfg.GroqModel)
	cfg.GroqBaseURL = getEnvOrDefault("GROQ_BASE_URL", cfg.GroqBaseURL)

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	cfg.HTTPAddr = getEnvOrDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.SiteURL = strings.TrimRight(getEnvOrDefault("SITE_URL", cfg.SiteURL), "/")
	cfg.SiteName = getEnvOrDefault("SITE_NAME", cfg.SiteName)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.ItemDelay, err = getEnvDurationOrDefault("ITEM_DELAY", cfg.ItemDelay); err != nil {
		return nil, err
	}
	if cfg.RewriteBackoff, err = getEnvDurationOrDefault("REWRITE_BACKOFF", cfg.RewriteBackoff); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getEnvDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}

	if v := os.Getenv("DEDUP_THRESHOLD"); v != "" {
		val, perr := strconv.ParseFloat(v, 64)
		if perr != nil || val <= 0 || val > 1 {
			return nil, fmt.Errorf("DEDUP_THRESHOLD must be in (0,1], got %q", v)
		}
		cfg.DedupThreshold = val
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a duration like 5s, got %q", key, value)
	}
	return d, nil
}

// ValidateStore checks the settings every database-backed command needs.
func (c *Config) ValidateStore() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Validate checks the settings the generation pipeline cannot run without.
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.RewriteMaxAttempts < 1 {
		return fmt.Errorf("REWRITE_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}
