package controller

import (
	"net/http"
	"strconv"

	"github.com/canopy-network/chanalytics/pkg/query"
)

const (
	maxDays  = 365
	maxLimit = 100
)

var (
	errInvalidPath  = &parseError{msg: "invalid path, must be 'transactional' or 'analytical'"}
	errInvalidDays  = &parseError{msg: "invalid days"}
	errInvalidLimit = &parseError{msg: "invalid limit"}
)

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

// parsePath reads ?path=, defaulting to the analytical store.
func parsePath(r *http.Request) (query.Path, error) {
	switch v := query.Path(r.URL.Query().Get("path")); v {
	case "":
		return query.Analytical, nil
	case query.Transactional, query.Analytical:
		return v, nil
	default:
		return "", errInvalidPath
	}
}

func parseDays(r *http.Request, def int) (int, error) {
	return parseBounded(r, "days", def, maxDays, errInvalidDays)
}

func parseLimit(r *http.Request, def int) (int, error) {
	return parseBounded(r, "limit", def, maxLimit, errInvalidLimit)
}

// parseBounded reads a positive integer query parameter capped at max.
func parseBounded(r *http.Request, name string, def, max int, invalid error) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, invalid
	}
	if n > max {
		n = max
	}
	return n, nil
}

func parseBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
