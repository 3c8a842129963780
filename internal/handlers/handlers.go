// Package handlers serves the admin API of an overlay node.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/routing"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// BreakerStates lists circuit breaker states by target
type BreakerStates interface {
	States() map[string]string
}

type Handlers struct {
	manager  *routing.Manager
	checks   map[string]HealthCheck
	breakers BreakerStates
	logger   logging.Logger
	timeout  time.Duration
}

// New creates the admin handlers. checks and breakers may be nil.
func New(manager *routing.Manager, checks map[string]HealthCheck, breakers BreakerStates, logger logging.Logger) *Handlers {
	return &Handlers{
		manager:  manager,
		checks:   checks,
		breakers: breakers,
		logger:   logging.Component(logger, "handlers"),
		timeout:  5 * time.Second,
	}
}

// Register mounts the admin routes on router
func (h *Handlers) Register(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/routes", h.GetRoutes).Methods(http.MethodGet)
	router.HandleFunc("/routes/rebuild", h.RebuildRoutes).Methods(http.MethodPost)
	router.HandleFunc("/routes/hops/{destination}", h.GetNextHop).Methods(http.MethodGet)
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Entries   int               `json:"routing_entries"`
	Checks    map[string]string `json:"checks,omitempty"`
	Breakers  map[string]string `json:"breakers,omitempty"`
}

// HealthCheck runs every dependency check. Any failure answers 503.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	health := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Entries:   h.manager.Table().Len(),
		Checks:    make(map[string]string, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			health.Status = "unhealthy"
			health.Checks[name] = err.Error()
			h.logger.Warn("Health check failed", logging.String("check", name), logging.Err(err))
			continue
		}
		health.Checks[name] = "healthy"
	}
	if h.breakers != nil {
		health.Breakers = h.breakers.States()
	}

	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// GetRoutes returns the routing table in its exchange form
func (h *Handlers) GetRoutes(w http.ResponseWriter, _ *http.Request) {
	data, err := h.manager.MarshalTable()
	if err != nil {
		h.logger.Error("Failed to encode routing table", err)
		http.Error(w, "Failed to encode routing table", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

type hopResponse struct {
	Destination      string `json:"destination"`
	SourceCommunity  string `json:"source_community"`
	GatewayMemberID  string `json:"gateway_member_id"`
	GatewayCommunity string `json:"gateway_community"`
	Cost             int    `json:"cost"`
}

// GetNextHop returns the cheapest hop towards a destination community
func (h *Handlers) GetNextHop(w http.ResponseWriter, r *http.Request) {
	destination := mux.Vars(r)["destination"]

	hop, err := h.manager.NextHop(destination)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.IsType(err, errors.ErrTypeNoRoute) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, hopResponse{
		Destination:      destination,
		SourceCommunity:  hop.SourceCommunity,
		GatewayMemberID:  hop.GatewayMemberID,
		GatewayCommunity: hop.GatewayCommunity,
		Cost:             hop.Cost,
	})
}

type rebuildResponse struct {
	Added   int `json:"added"`
	Entries int `json:"entries"`
}

// RebuildRoutes flushes and recalculates the routing table
func (h *Handlers) RebuildRoutes(w http.ResponseWriter, r *http.Request) {
	added, err := h.manager.Rebuild(r.Context())
	if err != nil {
		h.logger.Error("Routing table rebuild failed", err)
		status := http.StatusInternalServerError
		if stderrors.Is(err, routing.ErrNoLocalCommunities) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	h.logger.Info("Routing table rebuilt", logging.Int("added", added))
	writeJSON(w, http.StatusOK, rebuildResponse{Added: added, Entries: h.manager.Table().Len()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
