package analytical

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/canopy-network/chanalytics/pkg/db/clickhouse"
	"github.com/canopy-network/chanalytics/pkg/db/models"
	"go.uber.org/zap"
)

// EngagementByDay averages views/subscriber_count*100 per day for posts
// published at or after since. Channels without subscribers are excluded.
func (db *DB) EngagementByDay(ctx context.Context, since time.Time) ([]models.DailyEngagement, error) {
	query := fmt.Sprintf(`
		SELECT
			toDate(p.posted_at) AS day,
			avg(p.views / c.subscriber_count * 100) AS avg_engagement
		FROM "%[1]s"."%[2]s" AS p FINAL
		INNER JOIN (
			SELECT id, subscriber_count FROM "%[1]s"."%[3]s" FINAL
		) AS c ON p.channel_id = c.id
		WHERE p.posted_at >= ? AND c.subscriber_count > 0
		GROUP BY day
		ORDER BY day ASC
	`, db.Name, models.PostsAnalyticsTableName, models.ChannelsAnalyticsTableName)

	res, err := db.Execute(ctx, query, since.UTC())
	if err != nil {
		db.Logger.Error("engagement by day query failed", zap.Error(err))
		return nil, err
	}
	return decodeDailyEngagement(res)
}

// PostsByWeekday counts posts per weekday. toDayOfWeek is Monday=1..Sunday=7,
// so modulo 7 gives time.Weekday numbering.
func (db *DB) PostsByWeekday(ctx context.Context, since time.Time) ([]models.WeekdayCount, error) {
	query := fmt.Sprintf(`
		SELECT
			toDayOfWeek(posted_at) %% 7 AS dow,
			count() AS post_count
		FROM "%s"."%s" FINAL
		WHERE posted_at >= ?
		GROUP BY dow
		ORDER BY dow ASC
	`, db.Name, models.PostsAnalyticsTableName)

	res, err := db.Execute(ctx, query, since.UTC())
	if err != nil {
		db.Logger.Error("posts by weekday query failed", zap.Error(err))
		return nil, err
	}
	return decodeWeekdayCounts(res)
}

// TopPosts ranks posts by views and joins the channel title.
func (db *DB) TopPosts(ctx context.Context, limit int) ([]models.TopPost, error) {
	if limit <= 0 {
		return []models.TopPost{}, nil
	}
	query := fmt.Sprintf(`
		SELECT
			p.id AS id,
			p.views AS views,
			p.forwards AS forwards,
			p.replies AS replies,
			p.posted_at AS posted_at,
			c.title AS channel_title
		FROM "%[1]s"."%[2]s" AS p FINAL
		INNER JOIN (
			SELECT id, title FROM "%[1]s"."%[3]s" FINAL
		) AS c ON p.channel_id = c.id
		ORDER BY views DESC, id ASC
		LIMIT %[4]d
	`, db.Name, models.PostsAnalyticsTableName, models.ChannelsAnalyticsTableName, limit)

	res, err := db.Execute(ctx, query)
	if err != nil {
		db.Logger.Error("top posts query failed", zap.Error(err))
		return nil, err
	}
	return decodeTopPosts(res)
}

// ChannelStats returns the channel count and mean engagement rate.
func (db *DB) ChannelStats(ctx context.Context) (models.ChannelStats, error) {
	query := fmt.Sprintf(`
		SELECT
			count() AS total_channels,
			avg(avg_engagement_rate) AS avg_engagement
		FROM "%s"."%s" FINAL
	`, db.Name, models.ChannelsAnalyticsTableName)

	res, err := db.Execute(ctx, query)
	if err != nil {
		db.Logger.Error("channel stats query failed", zap.Error(err))
		return models.ChannelStats{}, err
	}
	return decodeChannelStats(res)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedResult, err)
}

func decodeDailyEngagement(res *clickhouse.Result) ([]models.DailyEngagement, error) {
	rows, err := res.Rows()
	if err != nil {
		return nil, malformed(err)
	}
	out := make([]models.DailyEngagement, 0, len(rows))
	for _, row := range rows {
		day, err := row.Time("day")
		if err != nil {
			return nil, malformed(err)
		}
		avg, err := row.Float("avg_engagement")
		if err != nil {
			return nil, malformed(err)
		}
		out = append(out, models.DailyEngagement{Day: day, AvgEngagement: avg})
	}
	return out, nil
}

func decodeWeekdayCounts(res *clickhouse.Result) ([]models.WeekdayCount, error) {
	rows, err := res.Rows()
	if err != nil {
		return nil, malformed(err)
	}
	out := make([]models.WeekdayCount, 0, len(rows))
	for _, row := range rows {
		dow, err := row.Int("dow")
		if err != nil {
			return nil, malformed(err)
		}
		if dow < 0 || dow > 6 {
			return nil, malformed(fmt.Errorf("weekday %d out of range", dow))
		}
		count, err := row.Int("post_count")
		if err != nil {
			return nil, malformed(err)
		}
		out = append(out, models.WeekdayCount{Weekday: time.Weekday(dow), Count: count})
	}
	return out, nil
}

func decodeTopPosts(res *clickhouse.Result) ([]models.TopPost, error) {
	rows, err := res.Rows()
	if err != nil {
		return nil, malformed(err)
	}
	out := make([]models.TopPost, 0, len(rows))
	for _, row := range rows {
		var p models.TopPost
		if p.ID, err = row.Int("id"); err != nil {
			return nil, malformed(err)
		}
		if p.Views, err = row.Int("views"); err != nil {
			return nil, malformed(err)
		}
		if p.Forwards, err = row.Int("forwards"); err != nil {
			return nil, malformed(err)
		}
		if p.Replies, err = row.Int("replies"); err != nil {
			return nil, malformed(err)
		}
		if p.PostedAt, err = row.Time("posted_at"); err != nil {
			return nil, malformed(err)
		}
		if p.ChannelTitle, err = row.String("channel_title"); err != nil {
			return nil, malformed(err)
		}
		out = append(out, p)
	}
	return out, nil
}

func decodeChannelStats(res *clickhouse.Result) (models.ChannelStats, error) {
	rows, err := res.Rows()
	if err != nil {
		return models.ChannelStats{}, malformed(err)
	}
	if len(rows) == 0 {
		return models.ChannelStats{}, nil
	}
	total, err := rows[0].Int("total_channels")
	if err != nil {
		return models.ChannelStats{}, malformed(err)
	}
	avg, err := rows[0].Float("avg_engagement")
	if err != nil {
		return models.ChannelStats{}, malformed(err)
	}
	// avg over an empty table is nan
	if total == 0 || math.IsNaN(avg) {
		avg = 0
	}
	return models.ChannelStats{TotalChannels: total, AvgEngagement: avg}, nil
}
