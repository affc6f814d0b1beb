package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TranslationCacheItem represents a cached article translation
type TranslationCacheItem struct {
	ContentHash string `db:"content_hash"`
	Language    string `db:"language"`
	Title       string `db:"title"`
	Content     string `db:"content"`
	AIProvider  string `db:"ai_provider"`
	UseCount    int    `db:"use_count"`
}

// GetTranslation retrieves a translation from cache. ErrNotFound when absent.
func (p *Postgres) GetTranslation(ctx context.Context, contentHash string) (TranslationCacheItem, error) {
	query, args, err := p.qb.Select("content_hash", "language", "title", "content", "ai_provider", "use_count").
		From("translation_cache").
		Where("content_hash = ?", contentHash).
		ToSql()
	if err != nil {
		return TranslationCacheItem{}, err
	}

	var item TranslationCacheItem
	if err := p.db.GetContext(ctx, &item, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TranslationCacheItem{}, ErrNotFound
		}
		return TranslationCacheItem{}, fmt.Errorf("failed to get translation from cache: %w", err)
	}
	return item, nil
}

// SetTranslation stores a translation, bumping use_count when it already exists.
func (p *Postgres) SetTranslation(ctx context.Context, item TranslationCacheItem) error {
	query, args, err := p.qb.Insert("translation_cache").
		Columns("content_hash", "language", "title", "content", "ai_provider").
		Values(item.ContentHash, item.Language, item.Title, item.Content, item.AIProvider).
		Suffix(`ON CONFLICT (content_hash) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			ai_provider = EXCLUDED.ai_provider,
			last_used_at = NOW(),
			use_count = translation_cache.use_count + 1`).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set translation cache: %w", err)
	}
	return nil
}
