package models

import "time"

// DailyEngagement is the average per-post engagement of one calendar day (UTC).
type DailyEngagement struct {
	Day           time.Time `json:"day"`
	AvgEngagement float64   `json:"avg_engagement"`
}

// WeekdayCount is the number of posts published on one weekday, Sunday = 0.
type WeekdayCount struct {
	Weekday time.Weekday `json:"weekday"`
	Count   int64        `json:"count"`
}

// ChannelStats summarizes every replicated channel.
type ChannelStats struct {
	TotalChannels int64   `json:"total_channels"`
	AvgEngagement float64 `json:"avg_engagement"`
}
