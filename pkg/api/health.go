package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cuemby/restbackup/pkg/health"
	"github.com/cuemby/restbackup/pkg/metrics"
)

// AdminServer exposes the operational endpoints that sit alongside the
// repository wire protocol: an unconditional liveness check, a
// storage-backed readiness check, and the Prometheus scrape endpoint.
type AdminServer struct {
	checker health.Checker
	mux     *http.ServeMux
}

// NewAdminServer builds the admin mux. checker may be nil, in which
// case /ready always reports healthy.
func NewAdminServer(checker health.Checker) *AdminServer {
	as := &AdminServer{checker: checker, mux: http.NewServeMux()}
	as.mux.HandleFunc("/health/live", as.liveHandler)
	as.mux.HandleFunc("/ready", as.readyHandler)
	as.mux.Handle("/metrics", metrics.Handler())
	return as
}

// Handler returns the http.Handler for embedding in another mux or
// serving directly.
func (as *AdminServer) Handler() http.Handler {
	return as.mux
}

func (as *AdminServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("live"))
}

type readyResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

func (as *AdminServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if as.checker == nil {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(readyResponse{Status: "ready", CheckedAt: time.Now()})
		return
	}

	result := as.checker.Check(r.Context())
	resp := readyResponse{CheckedAt: result.CheckedAt, Message: result.Message}
	if result.Healthy {
		resp.Status = "ready"
		w.WriteHeader(http.StatusOK)
	} else {
		resp.Status = "not ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
