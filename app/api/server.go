package api

import (
	"net/http"

	"github.com/canopy-network/chanalytics/app/api/controller"
	"github.com/canopy-network/chanalytics/app/api/types"
	"github.com/canopy-network/chanalytics/pkg/utils"
	"go.uber.org/zap"
)

// NewServer builds the router and binds the HTTP server to ADDR.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3000")

	app.Server = &http.Server{Addr: addr, Handler: controller.WithCORS(router)}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
