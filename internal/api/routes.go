// Package api wires the dashboard's HTTP surface: REST routes over
// gorilla/mux, the websocket push stream, Prometheus metrics, pprof
// profiling endpoints, and the health check.
//
// Grounded on the routing shape of a Dependencies struct feeding
// SetupRoutes, nil-guarded per-handler wiring, a global Recovery ->
// Logging -> CORS middleware chain, and an /api/v1 subrouter plus a
// debug pprof subrouter.
package api

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"spotscan/internal/api/handlers"
	"spotscan/internal/api/middleware"
	"spotscan/internal/coordinator"
	"spotscan/internal/repository"
	"spotscan/internal/signalbus"
	"spotscan/internal/wsbus"
)

// Dependencies bundles everything a dashboard handler might need. Any
// field left nil simply leaves its routes unregistered.
type Dependencies struct {
	Repo        *repository.Repository
	Coordinator *coordinator.Coordinator
	Bus         *signalbus.Bus
	Hub         *wsbus.Hub
	Risk        handlers.EmergencyStopper
	Engine      handlers.TradingToggle
	Selector    handlers.Revalidator
	DB          interface {
		PingContext(ctx context.Context) error
	}
	StartedAt            time.Time
	Log                  *zap.SugaredLogger
	OperatorPasswordHash string // bcrypt hash gating /control routes; empty disables auth (tests only)
}

// SetupRoutes builds the full router. deps.Log must be non-nil;
// everything else is optional.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Log))
	router.Use(middleware.Logging(deps.Log))
	router.Use(middleware.CORS)

	v1 := router.PathPrefix("/api/v1").Subrouter()

	if deps.Repo != nil {
		signalsHandler := handlers.NewSignalsHandler(deps.Repo)
		v1.HandleFunc("/signals", signalsHandler.GetSignals).Methods(http.MethodGet)

		tradesHandler := handlers.NewTradesHandler(deps.Repo)
		v1.HandleFunc("/trades", tradesHandler.GetOpenTrades).Methods(http.MethodGet)
		v1.HandleFunc("/trades/{id}", tradesHandler.GetTrade).Methods(http.MethodGet)
	}

	if deps.Coordinator != nil {
		coordHandler := handlers.NewCoordinatorHandler(deps.Coordinator, deps.Bus)
		v1.HandleFunc("/coordinator/stats", coordHandler.GetStats).Methods(http.MethodGet)
	}

	if deps.Risk != nil && deps.Engine != nil && deps.Selector != nil {
		controlHandler := handlers.NewControlHandler(deps.Risk, deps.Engine, deps.Selector)
		control := v1.PathPrefix("/control").Subrouter()
		if deps.OperatorPasswordHash != "" {
			control.Use(middleware.Auth(deps.OperatorPasswordHash, deps.Log))
		}
		control.HandleFunc("/emergency-stop", controlHandler.PostEmergencyStop).Methods(http.MethodPost)
		control.HandleFunc("/stop", controlHandler.PostStop).Methods(http.MethodPost)
		control.HandleFunc("/start", controlHandler.PostStart).Methods(http.MethodPost)
		control.HandleFunc("/force-revalidate", controlHandler.PostForceRevalidate).Methods(http.MethodPost)
	}

	systemHandler := handlers.NewSystemHandler(deps.DB, deps.StartedAt)
	router.HandleFunc("/healthz", systemHandler.GetHealth).Methods(http.MethodGet)

	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			wsbus.ServeWS(deps.Hub, deps.Log, w, r)
		}).Methods(http.MethodGet)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"heap", "goroutine", "block", "threadcreate", "mutex", "allocs"} {
		debug.Handle("/"+name, pprof.Handler(name))
	}

	return router
}
