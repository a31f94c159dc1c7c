package controller

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/canopy-network/chanalytics/app/api/types"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 16

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", c.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", c.HandleReady).Methods(http.MethodGet)

	r.HandleFunc("/analytics/engagement-trend", c.HandleEngagementTrend).Methods(http.MethodGet)
	r.HandleFunc("/analytics/posting-activity", c.HandlePostingActivity).Methods(http.MethodGet)
	r.HandleFunc("/analytics/top-posts", c.HandleTopPosts).Methods(http.MethodGet)
	r.HandleFunc("/analytics/channel-stats", c.HandleChannelStats).Methods(http.MethodGet)

	r.HandleFunc("/benchmark", c.HandleBenchmarkList).Methods(http.MethodGet)
	r.HandleFunc("/benchmark/{query}", c.HandleBenchmark).Methods(http.MethodGet)

	r.HandleFunc("/channels", c.HandleChannels).Methods(http.MethodGet)
	r.HandleFunc("/imports", c.HandleImport).Methods(http.MethodPost)

	r.HandleFunc("/replication/status", c.HandleReplicationStatus).Methods(http.MethodGet)
	r.HandleFunc("/sync", c.HandleSync).Methods(http.MethodPost)
	r.HandleFunc("/sync/refresh", c.HandleRefresh).Methods(http.MethodPost)

	r.HandleFunc("/ws", c.HandleWebSocket)

	return r, nil
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	payload, err := sonic.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(payload)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func readJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return sonic.Unmarshal(body, v)
}
