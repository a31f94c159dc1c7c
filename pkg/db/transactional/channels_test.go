package transactional

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelFilterWhere(t *testing.T) {
	cases := []struct {
		filter ChannelFilter
		clause string
		arg    float64
	}{
		{FilterHighEngagement, "WHERE avg_engagement_rate > $1", 5.0},
		{FilterFastGrowing, "WHERE growth_rate > $1", 10.0},
		{FilterActive, "WHERE post_frequency > $1", 0.5},
	}
	for _, c := range cases {
		t.Run(string(c.filter), func(t *testing.T) {
			where, args, err := c.filter.where()
			require.NoError(t, err)
			require.Equal(t, c.clause, where)
			require.Equal(t, []any{c.arg}, args)
		})
	}

	where, args, err := FilterAll.where()
	require.NoError(t, err)
	require.Empty(t, where)
	require.Nil(t, args)

	_, _, err = ChannelFilter("popular").where()
	require.Error(t, err)
}

func TestParseChannelFilter(t *testing.T) {
	f, err := ParseChannelFilter("fast_growing")
	require.NoError(t, err)
	require.Equal(t, FilterFastGrowing, f)

	f, err = ParseChannelFilter("")
	require.NoError(t, err)
	require.Equal(t, FilterAll, f)

	_, err = ParseChannelFilter("HIGH_ENGAGEMENT")
	require.Error(t, err)
}
