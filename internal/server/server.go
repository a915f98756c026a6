package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fitsync/internal/backend"
	"fitsync/internal/connectivity"
	"fitsync/internal/history"
	"fitsync/internal/install"
	"fitsync/internal/metrics"
	"fitsync/internal/status"
	"fitsync/internal/storage"
	"fitsync/internal/syncer"
	"fitsync/internal/update"
)

const timelineRange = 24 * time.Hour

// Server exposes sync, connectivity, and update state over HTTP plus a
// websocket stream, and accepts user actions for the queue.
type Server struct {
	httpServer   *http.Server
	presenter    *status.Presenter
	coordinator  *syncer.Coordinator
	connectivity *connectivity.Monitor
	updates      *update.Monitor
	installs     *install.Monitor
	drains       *storage.DrainHistory
	data         *backend.Client
	historyLimit int
}

// New creates a configured HTTP server for the sync engine.
func New(addr string, presenter *status.Presenter, coordinator *syncer.Coordinator,
	conn *connectivity.Monitor, updates *update.Monitor, installs *install.Monitor,
	drains *storage.DrainHistory, data *backend.Client) *Server {

	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: addr, Handler: mux},
		presenter:    presenter,
		coordinator:  coordinator,
		connectivity: conn,
		updates:      updates,
		installs:     installs,
		drains:       drains,
		data:         data,
		historyLimit: 200,
	}
	s.registerRoutes(mux)
	return s
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/actions", s.handleActions)
	mux.HandleFunc("/api/sync/status", s.handleSyncStatus)
	mux.HandleFunc("/api/sync/now", s.handleSyncNow)
	mux.HandleFunc("/api/sync/history", s.handleSyncHistory)
	mux.HandleFunc("/api/sync/stats", s.handleSyncStats)
	mux.HandleFunc("/api/sync/timeline", s.handleSyncTimeline)
	mux.HandleFunc("/api/connectivity", s.handleConnectivity)
	mux.HandleFunc("/api/connectivity/timeline", s.handleConnectivityTimeline)
	mux.HandleFunc("/api/update/status", s.handleUpdateStatus)
	mux.HandleFunc("/api/update/check", s.handleUpdateCheck)
	mux.HandleFunc("/api/update/apply", s.handleUpdateApply)
	mux.HandleFunc("/api/update/dismiss", s.handleUpdateDismiss)
	mux.HandleFunc("/api/install/status", s.handleInstallStatus)
	mux.HandleFunc("/api/install/prompt", s.handleInstallPrompt)
	mux.HandleFunc("/api/data/", s.handleData)
	mux.HandleFunc("/ws/status", s.handleStatusWS)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.presenter.Report())
}

type enqueueRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// handleActions is the mutation entry point: the queue absorbs the
// action regardless of connectivity, so this always answers 202.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Kind) == "" {
		http.Error(w, "action kind is required", http.StatusBadRequest)
		return
	}

	id := s.coordinator.Enqueue(req.Kind, req.Payload)
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Status())
}

func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	started := s.coordinator.RequestSyncNow()
	writeJSON(w, http.StatusOK, map[string]any{"started": started})
}

func (s *Server) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	writeJSON(w, http.StatusOK, s.drains.HistoryN(limit))
}

func (s *Server) handleSyncStats(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	summary := metrics.ComputeDeliveryStats(s.drains.HistoryN(limit))
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSyncTimeline(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	points := history.BuildSyncTimeline(
		s.drains.HistoryN(0), now.Add(-timelineRange), now, parsePoints(r))
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleConnectivity(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.connectivity.Snapshot())
}

func (s *Server) handleConnectivityTimeline(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	points := history.BuildConnectivityTimeline(
		s.connectivity.History(), now.Add(-timelineRange), now, parsePoints(r))
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      s.updates.Status(),
		"show_prompt": s.updates.ShouldPrompt(),
	})
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	found, err := s.updates.CheckForUpdates(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"update_available": found})
}

func (s *Server) handleUpdateApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.updates.ApplyUpdate()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleUpdateDismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.updates.DismissPrompt()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInstallStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.installs.Status())
}

func (s *Server) handleInstallPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accepted, err := s.installs.Install(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": accepted})
}

// handleData serves cached entity reads through the backend client.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if s.data == nil {
		http.Error(w, "no data backend configured", http.StatusNotFound)
		return
	}
	resource := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/data/"), "/")
	if resource == "" {
		http.Error(w, "resource is required", http.StatusBadRequest)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	data, err := s.data.Get(r.Context(), resource, force)
	if errors.Is(err, backend.ErrRateLimited) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if fallback > 0 && value > fallback {
		return fallback
	}
	return value
}

func parsePoints(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("points"))
	if raw == "" {
		return history.DefaultTimelinePoints
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 || value > 500 {
		return history.DefaultTimelinePoints
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
