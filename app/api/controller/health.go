package controller

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

func (c *Controller) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady reports whether both stores, Temporal and, when enabled, Redis
// answer. Any failed dependency makes the instance unready.
func (c *Controller) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{}
	ready := true
	fail := func(name string, err error) {
		ready = false
		checks[name] = "errored"
		c.App.Logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
	}

	body := map[string]any{"checks": checks}

	if status, err := c.App.Replication.Status(ctx); err != nil {
		fail("database", err)
	} else {
		checks["database"] = "ok"
		body["in_sync"] = status.InSync()
	}

	if health, err := c.App.Sync.Health(ctx); err != nil || !health.ConnectionOK {
		fail("temporal", err)
	} else {
		checks["temporal"] = "ok"
		body["sync_pollers"] = len(health.SyncQueue)
	}

	if c.App.Events != nil {
		if err := c.App.Events.Health(ctx); err != nil {
			fail("redis", err)
		} else {
			checks["redis"] = "ok"
		}
	}

	if !ready {
		body["status"] = "errored"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ok"
	writeJSON(w, http.StatusOK, body)
}
