package models

import "time"

const (
	ChannelsTableName          = "channels"
	ChannelsAnalyticsTableName = "channels_analytics"
)

// ChannelAnalyticsColumns is the replica schema for channels.
// updated_at is the ReplacingMergeTree version: resending an unchanged channel
// collapses into the existing row instead of appending a duplicate.
var ChannelAnalyticsColumns = []ColumnDef{
	{Name: "id", Type: "Int64", Codec: "Delta, ZSTD(3)"},
	{Name: "external_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "username", Type: "String", Codec: "ZSTD(1)"},
	{Name: "title", Type: "String", Codec: "ZSTD(1)"},
	{Name: "description", Type: "String", Codec: "ZSTD(3)"},
	{Name: "subscriber_count", Type: "Int64", Codec: "Delta, ZSTD(3)"},
	{Name: "avg_views", Type: "Int64", Codec: "ZSTD(3)"},
	{Name: "avg_engagement_rate", Type: "Float64", Codec: "ZSTD(3)"},
	{Name: "growth_rate", Type: "Float64", Codec: "ZSTD(3)"},
	{Name: "post_frequency", Type: "Float64", Codec: "ZSTD(3)"},
	{Name: "last_synced_at", Type: "DateTime('UTC')", Codec: "DoubleDelta, LZ4"},
	{Name: "created_at", Type: "DateTime('UTC')", Codec: "DoubleDelta, LZ4"},
	{Name: "updated_at", Type: "DateTime('UTC')", Codec: "DoubleDelta, LZ4"},
}

// Channel is a tracked channel. avg_views, avg_engagement_rate and
// post_frequency are derived from the channel's posts and are only written by
// metrics recomputation.
type Channel struct {
	ID                int64      `ch:"id" json:"id"`
	ExternalID        string     `ch:"external_id" json:"external_id"`
	Username          string     `ch:"username" json:"username"`
	Title             string     `ch:"title" json:"title"`
	Description       string     `ch:"description" json:"description"`
	SubscriberCount   int64      `ch:"subscriber_count" json:"subscriber_count"`
	AvgViews          int64      `ch:"avg_views" json:"avg_views"`
	AvgEngagementRate float64    `ch:"avg_engagement_rate" json:"avg_engagement_rate"`
	GrowthRate        *float64   `ch:"growth_rate" json:"growth_rate,omitempty"`
	PostFrequency     float64    `ch:"post_frequency" json:"post_frequency"`
	LastSyncedAt      *time.Time `ch:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt         time.Time  `ch:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `ch:"updated_at" json:"updated_at"`
}

// AnalyticsValues returns the replica row in ChannelAnalyticsColumns order.
// Absent growth rate and sync time are flattened to their zero values.
func (c *Channel) AnalyticsValues() []any {
	var growth float64
	if c.GrowthRate != nil {
		growth = *c.GrowthRate
	}
	var lastSynced time.Time
	if c.LastSyncedAt != nil {
		lastSynced = *c.LastSyncedAt
	}
	return []any{
		c.ID,
		c.ExternalID,
		c.Username,
		c.Title,
		c.Description,
		c.SubscriberCount,
		c.AvgViews,
		c.AvgEngagementRate,
		growth,
		c.PostFrequency,
		lastSynced,
		c.CreatedAt,
		c.UpdatedAt,
	}
}

// ChannelMetrics are the derived statistics persisted by recomputation.
type ChannelMetrics struct {
	AvgViews          int64   `json:"avg_views"`
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
	PostFrequency     float64 `json:"post_frequency"`
}
