package transactional

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/canopy-network/chanalytics/pkg/metrics"
	"github.com/jackc/pgx/v5"
)

// Channel filter thresholds. FastGrowingThreshold is the trending
// threshold so both classifications agree at the boundary.
const (
	HighEngagementThreshold = 5.0
	FastGrowingThreshold    = metrics.TrendingThreshold
	ActiveFrequency         = 0.5
)

// ChannelFilter selects a subset of channels.
type ChannelFilter string

const (
	FilterAll            ChannelFilter = ""
	FilterHighEngagement ChannelFilter = "high_engagement"
	FilterFastGrowing    ChannelFilter = "fast_growing"
	FilterActive         ChannelFilter = "active"
)

// ParseChannelFilter validates a filter name received from a caller.
func ParseChannelFilter(s string) (ChannelFilter, error) {
	f := ChannelFilter(s)
	if _, _, err := f.where(); err != nil {
		return FilterAll, err
	}
	return f, nil
}

func (f ChannelFilter) where() (string, []any, error) {
	switch f {
	case FilterAll:
		return "", nil, nil
	case FilterHighEngagement:
		return "WHERE avg_engagement_rate > $1", []any{HighEngagementThreshold}, nil
	case FilterFastGrowing:
		return "WHERE growth_rate > $1", []any{FastGrowingThreshold}, nil
	case FilterActive:
		return "WHERE post_frequency > $1", []any{ActiveFrequency}, nil
	default:
		return "", nil, fmt.Errorf("unknown channel filter %q", string(f))
	}
}

const channelColumns = `
	id, external_id, username, title, description, subscriber_count,
	avg_views, avg_engagement_rate, growth_rate, post_frequency,
	last_synced_at, created_at, updated_at`

func (db *DB) initChannels(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS channels (
			id BIGSERIAL PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE CHECK (external_id <> ''),
			username TEXT NOT NULL CHECK (username <> ''),
			title TEXT NOT NULL CHECK (title <> ''),
			description TEXT NOT NULL DEFAULT '',
			subscriber_count BIGINT NOT NULL DEFAULT 0,
			avg_views BIGINT NOT NULL DEFAULT 0,
			avg_engagement_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			growth_rate DOUBLE PRECISION,
			post_frequency DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_synced_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_channels_engagement ON channels (avg_engagement_rate);
	`
	return db.Exec(ctx, query)
}

func scanChannel(row pgx.Row) (*models.Channel, error) {
	var c models.Channel
	err := row.Scan(
		&c.ID,
		&c.ExternalID,
		&c.Username,
		&c.Title,
		&c.Description,
		&c.SubscriberCount,
		&c.AvgViews,
		&c.AvgEngagementRate,
		&c.GrowthRate,
		&c.PostFrequency,
		&c.LastSyncedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectChannels(rows pgx.Rows) ([]models.Channel, error) {
	defer rows.Close()
	var out []models.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpsertChannel creates the channel if its external id is new, otherwise
// updates its descriptive fields and growth rate. Metrics derived from posts
// are left alone. The stored row, including its id, is written back into c.
func (db *DB) UpsertChannel(ctx context.Context, c *models.Channel) error {
	query := `
		INSERT INTO channels (external_id, username, title, description, subscriber_count, growth_rate, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE SET
			username = EXCLUDED.username,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			subscriber_count = EXCLUDED.subscriber_count,
			growth_rate = EXCLUDED.growth_rate,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW()
		RETURNING ` + channelColumns

	syncedAt := time.Now().UTC()
	if c.LastSyncedAt != nil {
		syncedAt = *c.LastSyncedAt
	}

	stored, err := scanChannel(db.GetExecutor(ctx).QueryRow(ctx, query,
		c.ExternalID, c.Username, c.Title, c.Description, c.SubscriberCount, c.GrowthRate, syncedAt,
	))
	if err != nil {
		return fmt.Errorf("upsert channel %s: %w", c.ExternalID, err)
	}
	*c = *stored
	return nil
}

// GetChannelByExternalID returns the channel or an error matching postgres.IsNoRows.
func (db *DB) GetChannelByExternalID(ctx context.Context, externalID string) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE external_id = $1`
	return scanChannel(db.GetExecutor(ctx).QueryRow(ctx, query, externalID))
}

// UpdateChannelMetrics persists recomputed derived metrics.
func (db *DB) UpdateChannelMetrics(ctx context.Context, channelID int64, m models.ChannelMetrics) error {
	query := `
		UPDATE channels
		SET avg_views = $2, avg_engagement_rate = $3, post_frequency = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := db.GetExecutor(ctx).Exec(ctx, query, channelID, m.AvgViews, m.AvgEngagementRate, m.PostFrequency)
	if err != nil {
		return fmt.Errorf("update metrics of channel %d: %w", channelID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update metrics of channel %d: %w", channelID, pgx.ErrNoRows)
	}
	return nil
}

// ListChannels returns up to limit channels with id > afterID in id order.
func (db *DB) ListChannels(ctx context.Context, afterID int64, limit int) ([]models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id > $1 ORDER BY id LIMIT $2`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return collectChannels(rows)
}

// FilterChannels returns the channels matching filter, highest engagement first.
func (db *DB) FilterChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, error) {
	where, args, err := filter.where()
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + channelColumns + ` FROM channels ` + where + ` ORDER BY avg_engagement_rate DESC, id`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter channels %q: %w", string(filter), err)
	}
	return collectChannels(rows)
}

// ListUsernames returns the fetcher identifier of every known channel.
func (db *DB) ListUsernames(ctx context.Context) ([]string, error) {
	rows, err := db.GetExecutor(ctx).Query(ctx, `SELECT username FROM channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list usernames: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// CountChannels returns the number of channels.
func (db *DB) CountChannels(ctx context.Context) (int64, error) {
	return db.count(ctx, models.ChannelsTableName)
}

func (db *DB) count(ctx context.Context, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", pgx.Identifier{table}.Sanitize())
	if err := db.GetExecutor(ctx).QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
