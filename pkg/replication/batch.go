package replication

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Escape makes s safe inside a single-quoted ClickHouse string literal:
// backslashes are doubled first, then single quotes. Every string value that
// enters a batch payload goes through here.
func Escape(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`''`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Unescape reverses Escape.
func Unescape(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c == '\\' || c == '\'') && i+1 < len(s) && s[i+1] == c {
			i++
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Quote returns s as an escaped, single-quoted literal.
func Quote(s string) string {
	return "'" + Escape(s) + "'"
}

// Literal renders one column value for a VALUES tuple.
func Literal(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return Quote(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", fmt.Errorf("non-finite float %v", val)
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		if val.IsZero() {
			return Quote("1970-01-01 00:00:00"), nil
		}
		return Quote(val.UTC().Format(time.DateTime)), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// Batch is one bounded multi-row insert into a replica table.
type Batch struct {
	Table   string
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int { return len(b.Rows) }

// SQL renders the batch as a single INSERT ... VALUES payload.
func (b *Batch) SQL(database string) (string, error) {
	if len(b.Rows) == 0 {
		return "", fmt.Errorf("empty batch for %s", b.Table)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `INSERT INTO "%s"."%s" (%s) VALUES `, database, b.Table, strings.Join(b.Columns, ", "))

	for i, row := range b.Rows {
		if len(row) != len(b.Columns) {
			return "", fmt.Errorf("%s row %d has %d values for %d columns", b.Table, i, len(row), len(b.Columns))
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('(')
		for j, v := range row {
			lit, err := Literal(v)
			if err != nil {
				return "", fmt.Errorf("%s row %d column %s: %w", b.Table, i, b.Columns[j], err)
			}
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(lit)
		}
		sb.WriteByte(')')
	}

	return sb.String(), nil
}
