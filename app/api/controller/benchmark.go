package controller

import (
	"errors"
	"net/http"

	"github.com/canopy-network/chanalytics/pkg/query"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Endpoint: GET /benchmark
func (c *Controller) HandleBenchmarkList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": c.App.Query.Queries()})
}

// HandleBenchmark runs one query on both stores and reports the timings.
// Endpoint: GET /benchmark/{query}?days=<n>
func (c *Controller) HandleBenchmark(w http.ResponseWriter, r *http.Request) {
	id := query.QueryID(mux.Vars(r)["query"])
	days, err := parseDays(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := c.App.Query.Benchmark(r.Context(), id, query.Args{Days: days})
	if errors.Is(err, query.ErrUnknownQuery) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		c.App.Logger.Error("Benchmark failed", zap.String("query", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "benchmark failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}
