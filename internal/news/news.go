// Package news holds the domain types that flow through the generation pipeline.
package news

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// RawItem is one normalized RSS entry. It lives for a single run.
type RawItem struct {
	Title     string
	Content   string
	Link      string
	Source    string
	Category  string
	Published time.Time
}

// ProcessedArticle is the rewriter's output, consumed by the publisher.
type ProcessedArticle struct {
	Title             string   `json:"title"`
	Excerpt           string   `json:"excerpt"`
	Content           string   `json:"content"` // HTML
	Tags              []string `json:"tags"`
	Category          string   `json:"category"`
	SecondaryCategory string   `json:"secondary_category"`
	ImagePrompt       string   `json:"image_prompt"`
	OriginalURL       string   `json:"-"`
	Source            string   `json:"-"`
}

type Category struct {
	ID   string `db:"id"`
	Name string `db:"name"`
	Slug string `db:"slug"`
}

// Article is a persisted row of the articles table.
type Article struct {
	ID                string         `db:"id"`
	Title             string         `db:"title"`
	Slug              string         `db:"slug"`
	Content           string         `db:"content"`
	Excerpt           string         `db:"excerpt"`
	CategoryID        *string        `db:"category_id"`
	FeaturedImage     string         `db:"featured_image"`
	Status            string         `db:"status"`
	PublishedAt       time.Time      `db:"published_at"`
	AuthorID          *string        `db:"author_id"`
	Tags              pq.StringArray `db:"tags"`
	IsBreaking        bool           `db:"is_breaking"`
	IsFeatured        bool           `db:"is_featured"`
	SecondaryCategory *string        `db:"secondary_category"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
	SourceTitle       string         `db:"source_title"` // feed headline before the rewrite
}

// WindowEntry is the slice of an article the duplicate check needs.
type WindowEntry struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	SourceTitle string `db:"source_title"`
}

const StatusPublished = "published"

// DefaultCategory is used when neither the feed nor the model gives a usable one.
const DefaultCategory = "General"

// AllowedCategories is the fixed set an article's primary category must come from.
var AllowedCategories = []string{
	"India", "World", "Business", "Technology", "Sports", "Entertainment", "Health", "Politics",
}

// CanonicalCategory returns the allowed spelling of name, matching case-insensitively.
func CanonicalCategory(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range AllowedCategories {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}
