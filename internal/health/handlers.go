package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zsiec/keyseek/pkg/version"
)

// healthTimeout bounds a full /health run
const healthTimeout = 10 * time.Second

// Response represents the health check response.
type Response struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]*Check `json:"checks,omitempty"`
}

// ReadyResponse is the /ready body. Failing lists the checks that are not ok.
type ReadyResponse struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Failing   []string  `json:"failing,omitempty"`
}

// Handler handles health check HTTP endpoints.
type Handler struct {
	manager   *Manager
	startTime time.Time
}

// NewHandler creates a new health check handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{
		manager:   manager,
		startTime: time.Now(),
	}
}

// HandleHealth runs every checker and reports the results. Degraded still
// answers 200 so load balancers keep routing seeks.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := h.manager.RunChecks(ctx)
	status := h.manager.GetOverallStatus()

	h.writeJSON(w, statusCode(status), Response{
		Status:    status,
		Timestamp: time.Now(),
		Version:   version.Version,
		Uptime:    h.uptime().String(),
		Checks:    checks,
	})
}

// HandleReady answers from the latest periodic results and only runs the
// checkers itself before the first round has completed.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	results := h.manager.GetResults()
	if len(results) == 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		results = h.manager.RunChecks(ctx)
	}

	resp := ReadyResponse{
		Status:    h.manager.GetOverallStatus(),
		Timestamp: time.Now(),
	}
	for name, check := range results {
		if check.Status != StatusOK {
			resp.Failing = append(resp.Failing, name)
		}
	}

	h.writeJSON(w, statusCode(resp.Status), resp)
}

// HandleLive reports that the process is serving requests.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{
		Status:    "alive",
		Timestamp: time.Now(),
	})
}

func (h *Handler) uptime() time.Duration {
	return time.Since(h.startTime).Round(time.Second)
}

func statusCode(status Status) int {
	if status == StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.manager.logger.WithError(err).Error("Failed to encode health response")
	}
}
