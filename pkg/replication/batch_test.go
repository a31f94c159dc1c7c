package replication

import (
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"O'Reilly",
		"''",
		`back\slash`,
		`\'`,
		`it\'s`,
		"emoji 🚀 'quoted' \\n",
		"ends with '",
		`ends with \`,
	}
	for _, s := range cases {
		require.Equal(t, s, Unescape(Escape(s)), "round trip of %q", s)
	}

	alphabet := []rune{'a', 'b', '\'', '\\', ' ', 'я', '"'}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := rng.Intn(24)
		runes := make([]rune, n)
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		s := string(runes)
		escaped := Escape(s)
		require.Equal(t, s, Unescape(escaped))
		require.Equal(t, strings.Count(s, "'")*2, strings.Count(escaped, "'"))
	}
}

func TestEscapeDoublesQuotes(t *testing.T) {
	require.Equal(t, "O''Reilly", Escape("O'Reilly"))
	require.Equal(t, `a\\b`, Escape(`a\b`))
	require.Equal(t, `'it''s'`, Quote("it's"))
}

func TestLiteral(t *testing.T) {
	ts := time.Date(2024, 3, 6, 14, 5, 9, 0, time.FixedZone("X", 3*3600))

	cases := []struct {
		in   any
		want string
	}{
		{int64(-7), "-7"},
		{42, "42"},
		{int32(3), "3"},
		{uint64(9), "9"},
		{20.5, "20.5"},
		{true, "1"},
		{false, "0"},
		{"x'y", "'x''y'"},
		{ts, "'2024-03-06 11:05:09'"},
		{time.Time{}, "'1970-01-01 00:00:00'"},
	}
	for _, c := range cases {
		got, err := Literal(c.in)
		require.NoError(t, err)
		require.Equal(t, c.want, got)
	}

	_, err := Literal(math.NaN())
	require.Error(t, err)
	_, err = Literal(struct{}{})
	require.Error(t, err)
}

func TestBatchSQL(t *testing.T) {
	b := &Batch{
		Table:   "channels_analytics",
		Columns: []string{"id", "title"},
		Rows: [][]any{
			{int64(1), "Tech"},
			{int64(2), "Bob's"},
		},
	}
	query, err := b.SQL("analytics")
	require.NoError(t, err)
	require.Equal(t, `INSERT INTO "analytics"."channels_analytics" (id, title) VALUES (1, 'Tech'),(2, 'Bob''s')`, query)
}

func TestBatchSQLRejectsMalformedBatches(t *testing.T) {
	_, err := (&Batch{Table: "t", Columns: []string{"id"}}).SQL("db")
	require.Error(t, err)

	_, err = (&Batch{Table: "t", Columns: []string{"id", "x"}, Rows: [][]any{{int64(1)}}}).SQL("db")
	require.ErrorContains(t, err, "row 0 has 1 values for 2 columns")
}
