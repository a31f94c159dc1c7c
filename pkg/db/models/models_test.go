package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsValuesMatchColumns(t *testing.T) {
	ch := &Channel{ID: 1, ExternalID: "T1"}
	post := &Post{ID: 1, ChannelID: 1}

	require.Len(t, ch.AnalyticsValues(), len(ChannelAnalyticsColumns))
	require.Len(t, post.AnalyticsValues(), len(PostAnalyticsColumns))
	require.NoError(t, ValidateColumns(ChannelAnalyticsColumns))
	require.NoError(t, ValidateColumns(PostAnalyticsColumns))
}

func TestChannelAnalyticsValuesFlattensAbsentFields(t *testing.T) {
	ch := &Channel{ID: 7, ExternalID: "T7"}
	values := ch.AnalyticsValues()

	assert.Equal(t, 0.0, values[8], "growth_rate")
	assert.Equal(t, time.Time{}, values[10], "last_synced_at")

	growth := 12.5
	now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	ch.GrowthRate = &growth
	ch.LastSyncedAt = &now
	values = ch.AnalyticsValues()
	assert.Equal(t, 12.5, values[8])
	assert.Equal(t, now, values[10])
}

func TestColumnsToSchemaSQL(t *testing.T) {
	cols := []ColumnDef{
		{Name: "id", Type: "Int64"},
		{Name: "title", Type: "String", Codec: "ZSTD(1)"},
	}
	assert.Equal(t, "id Int64,\n\t\t\ttitle String CODEC(ZSTD(1))", ColumnsToSchemaSQL(cols))
	assert.Equal(t, []string{"id", "title"}, ColumnsToNameList(cols))
	assert.Error(t, ColumnDef{Name: "x"}.Validate())
}
