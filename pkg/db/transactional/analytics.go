package transactional

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/jackc/pgx/v5"
)

// EngagementByDay averages views/subscriber_count*100 per UTC day for posts
// published at or after since. Posts of channels without subscribers are
// excluded, matching the analytical store.
func (db *DB) EngagementByDay(ctx context.Context, since time.Time) ([]models.DailyEngagement, error) {
	query := `
		SELECT (p.posted_at AT TIME ZONE 'UTC')::date AS day,
			AVG(p.views::float8 / c.subscriber_count * 100) AS avg_engagement
		FROM posts p
		JOIN channels c ON c.id = p.channel_id
		WHERE p.posted_at >= $1 AND c.subscriber_count > 0
		GROUP BY day
		ORDER BY day
	`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("engagement by day: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DailyEngagement, error) {
		var d models.DailyEngagement
		if err := row.Scan(&d.Day, &d.AvgEngagement); err != nil {
			return d, err
		}
		d.Day = time.Date(d.Day.Year(), d.Day.Month(), d.Day.Day(), 0, 0, 0, 0, time.UTC)
		return d, nil
	})
}

// PostsByWeekday counts posts published at or after since per UTC weekday.
// EXTRACT(DOW) numbers Sunday as 0, like time.Weekday.
func (db *DB) PostsByWeekday(ctx context.Context, since time.Time) ([]models.WeekdayCount, error) {
	query := `
		SELECT EXTRACT(DOW FROM posted_at AT TIME ZONE 'UTC')::int AS dow, count(*) AS post_count
		FROM posts
		WHERE posted_at >= $1
		GROUP BY dow
		ORDER BY dow
	`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("posts by weekday: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WeekdayCount, error) {
		var (
			dow   int32
			count int64
		)
		if err := row.Scan(&dow, &count); err != nil {
			return models.WeekdayCount{}, err
		}
		return models.WeekdayCount{Weekday: time.Weekday(dow), Count: count}, nil
	})
}
