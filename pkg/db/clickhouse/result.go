package clickhouse

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Column describes one column of a columnar Result.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Result is the columnar answer of Execute: column metadata plus positional rows.
type Result struct {
	Meta []Column `json:"meta"`
	Data [][]any  `json:"data"`
}

// Row is one result row keyed by column name.
type Row map[string]any

// Rows converts the positional data into rows keyed by Meta[i].Name.
// A row shorter than Meta is a malformed response and is reported as an error.
func (r *Result) Rows() ([]Row, error) {
	if r == nil {
		return nil, nil
	}
	out := make([]Row, 0, len(r.Data))
	for idx, data := range r.Data {
		if len(data) != len(r.Meta) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", idx, len(data), len(r.Meta))
		}
		row := make(Row, len(r.Meta))
		for i, col := range r.Meta {
			row[col.Name] = data[i]
		}
		out = append(out, row)
	}
	return out, nil
}

// Float returns the named column as float64, accepting any numeric driver type.
func (r Row) Float(name string) (float64, error) {
	switch v := r[name].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case *float64:
		if v == nil {
			return 0, nil
		}
		return *v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	case nil:
		return 0, fmt.Errorf("column %q missing", name)
	default:
		return 0, fmt.Errorf("column %q: unexpected type %T", name, v)
	}
}

// Int returns the named column as int64.
func (r Row) Int(name string) (int64, error) {
	switch v := r[name].(type) {
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("column %q: %d overflows int64", name, v)
		}
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		f, err := r.Float(name)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	}
}

// String returns the named column as a string; dates are rendered as 2006-01-02.
func (r Row) String(name string) (string, error) {
	switch v := r[name].(type) {
	case string:
		return v, nil
	case time.Time:
		return v.UTC().Format(time.DateOnly), nil
	case nil:
		return "", fmt.Errorf("column %q missing", name)
	default:
		return fmt.Sprint(v), nil
	}
}

// Time returns the named column as a UTC time.
func (r Row) Time(name string) (time.Time, error) {
	switch v := r[name].(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return time.ParseInLocation(time.DateTime, v, time.UTC)
	default:
		return time.Time{}, fmt.Errorf("column %q: unexpected type %T", name, v)
	}
}
