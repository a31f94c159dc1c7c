package query

import (
	"bytes"
	"encoding/json"
	"time"
)

// Weekdays are the postingActivity bucket labels, indexed by time.Weekday.
var Weekdays = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// DayLabel formats engagement trend labels.
const DayLabel = time.DateOnly

// Point is one labelled value of a series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// OrderedSeries is a label -> value mapping that keeps insertion order.
// It marshals to a JSON object whose keys appear in series order.
type OrderedSeries []Point

// Get returns the value for label.
func (s OrderedSeries) Get(label string) (float64, bool) {
	for _, p := range s {
		if p.Label == label {
			return p.Value, true
		}
	}
	return 0, false
}

// Labels returns the labels in order.
func (s OrderedSeries) Labels() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Label
	}
	return out
}

func (s OrderedSeries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
