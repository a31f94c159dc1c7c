package transactional

import (
	"context"
	"fmt"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/jackc/pgx/v5"
)

const postColumns = `
	id, channel_id, external_message_id, text, views, forwards, replies,
	posted_at, created_at, updated_at`

func (db *DB) initPosts(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS posts (
			id BIGSERIAL PRIMARY KEY,
			channel_id BIGINT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
			external_message_id TEXT NOT NULL CHECK (external_message_id <> ''),
			text TEXT NOT NULL DEFAULT '',
			views BIGINT NOT NULL DEFAULT 0,
			forwards BIGINT NOT NULL DEFAULT 0,
			replies BIGINT NOT NULL DEFAULT 0,
			posted_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (channel_id, external_message_id)
		);
		CREATE INDEX IF NOT EXISTS idx_posts_posted_at ON posts (posted_at);
	`
	return db.Exec(ctx, query)
}

func scanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	err := row.Scan(
		&p.ID,
		&p.ChannelID,
		&p.ExternalMessageID,
		&p.Text,
		&p.Views,
		&p.Forwards,
		&p.Replies,
		&p.PostedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPosts(rows pgx.Rows) ([]models.Post, error) {
	defer rows.Close()
	var out []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpsertPost inserts the post or refreshes its counters when
// (channel_id, external_message_id) already exists. The stored row is
// written back into p.
func (db *DB) UpsertPost(ctx context.Context, p *models.Post) error {
	query := `
		INSERT INTO posts (channel_id, external_message_id, text, views, forwards, replies, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (channel_id, external_message_id) DO UPDATE SET
			text = EXCLUDED.text,
			views = EXCLUDED.views,
			forwards = EXCLUDED.forwards,
			replies = EXCLUDED.replies,
			posted_at = EXCLUDED.posted_at,
			updated_at = NOW()
		RETURNING ` + postColumns

	stored, err := scanPost(db.GetExecutor(ctx).QueryRow(ctx, query,
		p.ChannelID, p.ExternalMessageID, p.Text, p.Views, p.Forwards, p.Replies, p.PostedAt.UTC(),
	))
	if err != nil {
		return fmt.Errorf("upsert post %d/%s: %w", p.ChannelID, p.ExternalMessageID, err)
	}
	*p = *stored
	return nil
}

// ListChannelPosts returns every post of a channel.
func (db *DB) ListChannelPosts(ctx context.Context, channelID int64) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE channel_id = $1 ORDER BY posted_at`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list posts of channel %d: %w", channelID, err)
	}
	return collectPosts(rows)
}

// ListPosts returns up to limit posts with id > afterID in id order.
func (db *DB) ListPosts(ctx context.Context, afterID int64, limit int) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id > $1 ORDER BY id LIMIT $2`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return collectPosts(rows)
}

// CountPosts returns the number of posts.
func (db *DB) CountPosts(ctx context.Context) (int64, error) {
	return db.count(ctx, models.PostsTableName)
}
