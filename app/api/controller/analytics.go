package controller

import (
	"net/http"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/canopy-network/chanalytics/pkg/db/transactional"
	"github.com/canopy-network/chanalytics/pkg/metrics"
	"github.com/canopy-network/chanalytics/pkg/query"
	"go.uber.org/zap"
)

// HandleEngagementTrend returns average engagement per day.
// Endpoint: GET /analytics/engagement-trend?path=<transactional|analytical>&days=<n>
func (c *Controller) HandleEngagementTrend(w http.ResponseWriter, r *http.Request) {
	path, err := parsePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := parseDays(r, query.DefaultTrendDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := c.App.Query.EngagementTrend(r.Context(), path, days)
	if err != nil {
		c.App.Logger.Error("Engagement trend query failed", zap.String("path", string(path)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"path": path, "days": days, "data": series})
}

// HandlePostingActivity returns post counts per weekday.
// Endpoint: GET /analytics/posting-activity?path=<transactional|analytical>&days=<n>
func (c *Controller) HandlePostingActivity(w http.ResponseWriter, r *http.Request) {
	path, err := parsePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := parseDays(r, query.DefaultActivityDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := c.App.Query.PostingActivity(r.Context(), path, days)
	if err != nil {
		c.App.Logger.Error("Posting activity query failed", zap.String("path", string(path)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"path": path, "days": days, "data": series})
}

// HandleTopPosts returns the most viewed posts.
// Endpoint: GET /analytics/top-posts?limit=<n>
func (c *Controller) HandleTopPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, query.DefaultTopPosts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posts, err := c.App.Query.TopPosts(r.Context(), limit)
	if err != nil {
		c.App.Logger.Error("Top posts query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": posts})
}

// Endpoint: GET /analytics/channel-stats
func (c *Controller) HandleChannelStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.App.Query.ChannelStats(r.Context())
	if err != nil {
		c.App.Logger.Error("Channel stats query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// channelView is a channel as listed by the API, with its growth trend.
type channelView struct {
	models.Channel
	GrowthTrend metrics.Trend `json:"growth_trend"`
}

// HandleChannels lists channels, optionally narrowed by a named filter.
// Endpoint: GET /channels?filter=<high_engagement|fast_growing|active>
func (c *Controller) HandleChannels(w http.ResponseWriter, r *http.Request) {
	filter, err := transactional.ParseChannelFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	channels, err := c.App.Channels.FilterChannels(r.Context(), filter)
	if err != nil {
		c.App.Logger.Error("Channel listing failed", zap.String("filter", string(filter)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	views := make([]channelView, len(channels))
	for i := range channels {
		views[i] = channelView{Channel: channels[i], GrowthTrend: metrics.GrowthTrend(channels[i].GrowthRate)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"filter": filter, "data": views})
}
