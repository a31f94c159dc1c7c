package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/canopy-network/chanalytics/pkg/importer"
	"go.uber.org/zap"
)

type importRequest struct {
	Identifier string `json:"identifier"`
}

type importResponse struct {
	Result *importer.Result `json:"result"`
	// ReplicationError is set when the import committed but the analytical
	// store could not be refreshed.
	ReplicationError string `json:"replication_error,omitempty"`
}

// HandleImport imports one channel and replicates it.
// Endpoint: POST /imports {"identifier": "@channel"}
func (c *Controller) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := c.App.Importer.Import(r.Context(), req.Identifier)
	switch {
	case errors.Is(err, importer.ErrReplication):
		c.App.Logger.Warn("Import committed without replication",
			zap.String("identifier", req.Identifier), zap.Error(err))
		writeJSON(w, http.StatusAccepted, importResponse{Result: res, ReplicationError: err.Error()})
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "import cancelled")
		return
	case err != nil:
		c.App.Logger.Error("Import failed", zap.String("identifier", req.Identifier), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}

	writeJSON(w, importStatus(res), importResponse{Result: res})
}

// importStatus maps a structured import failure to an HTTP status.
func importStatus(res *importer.Result) int {
	if res.OK() {
		return http.StatusOK
	}
	switch res.Failure.Kind {
	case importer.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
