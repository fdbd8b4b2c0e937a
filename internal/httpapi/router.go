package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dwizi/hass-bridge/internal/catalog"
	"github.com/dwizi/hass-bridge/internal/config"
	"github.com/dwizi/hass-bridge/internal/heartbeat"
	"github.com/dwizi/hass-bridge/internal/resolver"
	"github.com/dwizi/hass-bridge/internal/store"
)

type Catalog interface {
	Snapshot() *catalog.Snapshot
}

type Resolver interface {
	ResolveTarget(phrase string) resolver.Resolution
}

type Dependencies struct {
	Config              config.Config
	Store               *store.Store
	Catalog             Catalog
	Resolver            Resolver
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", rt.handleHealth)
	r.Get("/readyz", rt.handleReady)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/info", rt.handleInfo)
		r.Get("/heartbeat", rt.handleHeartbeat)
		r.Get("/catalog", rt.handleCatalog)
		r.Get("/resolve", rt.handleResolve)
		r.Get("/commands", rt.handleCommands)
	})
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
