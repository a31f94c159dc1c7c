package controller

import (
	"net/http"

	"github.com/canopy-network/chanalytics/pkg/replication"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

type syncResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	// Result is only present when the caller waited.
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type replicationResult struct {
	Summary replication.Summary `json:"summary"`
}

// HandleReplicationStatus compares row counts between the two stores.
// Endpoint: GET /replication/status
func (c *Controller) HandleReplicationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := c.App.Replication.Status(r.Context())
	if err != nil {
		c.App.Logger.Error("Replication status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "status failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "in_sync": status.InSync()})
}

// HandleSync starts a full resync. A resync already running is joined
// rather than duplicated.
// Endpoint: POST /sync?wait=<bool>
func (c *Controller) HandleSync(w http.ResponseWriter, r *http.Request) {
	run, err := c.App.Sync.StartReplication(r.Context())
	if err != nil {
		c.App.Logger.Error("Unable to start replication workflow", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unable to start replication")
		return
	}
	c.respondRun(w, r, run, &replicationResult{})
}

// HandleRefresh starts the bulk re-import of every known channel.
// Endpoint: POST /sync/refresh?wait=<bool>
func (c *Controller) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	run, err := c.App.Sync.StartRefresh(r.Context(), "api")
	if err != nil {
		c.App.Logger.Error("Unable to start refresh workflow", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unable to start refresh")
		return
	}
	c.respondRun(w, r, run, &map[string]any{})
}

// respondRun returns the run ids, or blocks on the run when ?wait=true.
func (c *Controller) respondRun(w http.ResponseWriter, r *http.Request, run client.WorkflowRun, result any) {
	resp := syncResponse{WorkflowID: run.GetID(), RunID: run.GetRunID()}
	if !parseBool(r, "wait") {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	if err := run.Get(r.Context(), result); err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	resp.Result = result
	writeJSON(w, http.StatusOK, resp)
}
