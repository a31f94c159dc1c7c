package models

import "time"

const (
	PostsTableName          = "posts"
	PostsAnalyticsTableName = "posts_analytics"
)

// PostAnalyticsColumns is the replica schema for posts. Post text is not
// replicated; the analytical store only aggregates counters.
var PostAnalyticsColumns = []ColumnDef{
	{Name: "id", Type: "Int64", Codec: "Delta, ZSTD(3)"},
	{Name: "channel_id", Type: "Int64", Codec: "ZSTD(3)"},
	{Name: "external_message_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "views", Type: "Int64", Codec: "ZSTD(3)"},
	{Name: "forwards", Type: "Int64", Codec: "ZSTD(3)"},
	{Name: "replies", Type: "Int64", Codec: "ZSTD(3)"},
	{Name: "posted_at", Type: "DateTime('UTC')", Codec: "DoubleDelta, LZ4"},
	{Name: "created_at", Type: "DateTime('UTC')", Codec: "DoubleDelta, LZ4"},
	{Name: "updated_at", Type: "DateTime('UTC')", Codec: "DoubleDelta, LZ4"},
}

// Post is a single channel message. (channel_id, external_message_id) is unique.
type Post struct {
	ID                int64     `ch:"id" json:"id"`
	ChannelID         int64     `ch:"channel_id" json:"channel_id"`
	ExternalMessageID string    `ch:"external_message_id" json:"external_message_id"`
	Text              string    `ch:"-" json:"text,omitempty"`
	Views             int64     `ch:"views" json:"views"`
	Forwards          int64     `ch:"forwards" json:"forwards"`
	Replies           int64     `ch:"replies" json:"replies"`
	PostedAt          time.Time `ch:"posted_at" json:"posted_at"`
	CreatedAt         time.Time `ch:"created_at" json:"created_at"`
	UpdatedAt         time.Time `ch:"updated_at" json:"updated_at"`
}

// AnalyticsValues returns the replica row in PostAnalyticsColumns order.
func (p *Post) AnalyticsValues() []any {
	return []any{
		p.ID,
		p.ChannelID,
		p.ExternalMessageID,
		p.Views,
		p.Forwards,
		p.Replies,
		p.PostedAt,
		p.CreatedAt,
		p.UpdatedAt,
	}
}

// TopPost is a post ranked by views, joined with its channel title.
type TopPost struct {
	ID           int64     `json:"id"`
	Views        int64     `json:"views"`
	Forwards     int64     `json:"forwards"`
	Replies      int64     `json:"replies"`
	PostedAt     time.Time `json:"posted_at"`
	ChannelTitle string    `json:"channel_title"`
}
