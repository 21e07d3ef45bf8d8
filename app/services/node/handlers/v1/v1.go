// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/ubilog/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/ubilog/foundation/blockchain/state"
	"github.com/ardanlabs/ubilog/foundation/events"
	"github.com/ardanlabs/ubilog/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/node/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/chain/longest", pbl.LongestChain)
	app.Handle(http.MethodGet, version, "/block/:hash", pbl.Block)
	app.Handle(http.MethodGet, version, "/peers", pbl.Peers)
	app.Handle(http.MethodPost, version, "/peers", pbl.AddPeer)
	app.Handle(http.MethodGet, version, "/pool", pbl.Mempool)
	app.Handle(http.MethodDelete, version, "/pool", pbl.TruncateMempool)
	app.Handle(http.MethodPost, version, "/slice/submit", pbl.SubmitSlice)
}
