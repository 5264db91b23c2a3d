// Package diagserver is the agent's local diagnostic HTTP API: thin reads
// over the shared application state, bound to loopback only, for an
// operator or support tool to poll without needing backend credentials.
package diagserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ajime-dev/ajime-agent/internal/alog"
	"github.com/ajime-dev/ajime-agent/internal/storage"
	"github.com/ajime-dev/ajime-agent/internal/telemetry"
	"github.com/ajime-dev/ajime-agent/internal/workflow"
)

// BuildInfo carries ldflags-injected version metadata for /version.
type BuildInfo struct {
	Version   string
	GitHash   string
	BuildTime string
}

// ActivityTouch is the subset of *supervisor.ActivityTracker the server
// needs, kept narrow so this package doesn't import internal/supervisor.
type ActivityTouch interface {
	Touch()
}

// Syncer is the subset of *syncer.Syncer the server needs.
type Syncer interface {
	TriggerSync(ctx context.Context) error
	CachedWorkflowIDs() []string
}

// WorkflowCache is the subset of *workflow.Cache the server needs.
type WorkflowCache interface {
	Get(workflowID string) (workflow.Entry, bool)
}

// Server serves the diagnostic HTTP API on a fixed address.
type Server struct {
	addr      string
	layout    storage.Layout
	syncer    Syncer
	workflows WorkflowCache
	activity  ActivityTouch
	build     BuildInfo

	mux *http.ServeMux
}

// New builds a Server bound to addr (host:port), reading device info from
// layout and delegating sync/workflow lookups to syncer/workflows. activity
// is touched on every route except /health and /version, matching the
// original's handlers (a liveness probe should never count as "in use").
func New(addr string, layout storage.Layout, syncer Syncer, workflows WorkflowCache, activity ActivityTouch, build BuildInfo) *Server {
	s := &Server{
		addr:      addr,
		layout:    layout,
		syncer:    syncer,
		workflows: workflows,
		activity:  activity,
		build:     build,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/version", s.versionHandler)
	mux.HandleFunc("/device", s.deviceHandler)
	mux.HandleFunc("/device/sync", s.deviceSyncHandler)
	mux.HandleFunc("/workflows/deployed", s.workflowsDeployedHandler)
	metrics := telemetry.Handler()
	mux.HandleFunc("/telemetry/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.activity.Touch()
		metrics.ServeHTTP(w, r)
	})
	s.mux = mux

	return s
}

// Serve starts the HTTP listener in its own goroutine and returns a channel
// that closes once shutdown has fired and the server has shut down. A
// ListenAndServe failure is logged and does not close the channel.
func (s *Server) Serve(shutdown <-chan struct{}) <-chan struct{} {
	log := alog.WithComponent("diagserver")
	done := make(chan struct{})

	httpServer := &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", s.addr).Msg("starting diagnostic server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("diagnostic server stopped unexpectedly")
		}
	}()

	go func() {
		defer close(done)
		<-shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("diagnostic server shutdown error")
		}
	}()

	return done
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// healthHandler is a bare liveness probe: 200 if the process can answer
// HTTP at all. It deliberately does not touch the activity tracker or
// aggregate component health — that's internal/telemetry's job.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: "ajime-agent",
		Version: s.build.Version,
	})
}

type versionResponse struct {
	Version   string `json:"version"`
	GitHash   string `json:"git_hash"`
	BuildTime string `json:"build_time"`
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{
		Version:   s.build.Version,
		GitHash:   s.build.GitHash,
		BuildTime: s.build.BuildTime,
	})
}

type deviceResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
	Status     string `json:"status"`
	OwnerID    string `json:"owner_id"`
}

func (s *Server) deviceHandler(w http.ResponseWriter, r *http.Request) {
	s.activity.Touch()

	device, err := storage.LoadDevice(s.layout)
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, deviceResponse{
		ID:         device.ID,
		Name:       device.Name,
		DeviceType: device.DeviceType,
		Status:     "online",
		OwnerID:    device.OwnerID,
	})
}

type syncResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// deviceSyncHandler triggers an on-demand sync. It always replies 200: a
// sync failure is reported in the body, not as an HTTP error status, since
// the caller asked the agent to *try*, not to guarantee success.
func (s *Server) deviceSyncHandler(w http.ResponseWriter, r *http.Request) {
	s.activity.Touch()

	if err := s.syncer.TriggerSync(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, syncResponse{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Message: "sync completed"})
}

type deployedWorkflow struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type workflowsDeployedResponse struct {
	Workflows []deployedWorkflow `json:"workflows"`
	Total     int                `json:"total"`
}

func (s *Server) workflowsDeployedHandler(w http.ResponseWriter, r *http.Request) {
	s.activity.Touch()

	ids := s.syncer.CachedWorkflowIDs()
	out := make([]deployedWorkflow, 0, len(ids))
	for _, id := range ids {
		entry, ok := s.workflows.Get(id)
		if !ok {
			continue
		}
		out = append(out, deployedWorkflow{
			ID:     entry.Workflow.ID,
			Name:   entry.Workflow.Name,
			Status: string(entry.Workflow.Status),
		})
	}

	writeJSON(w, http.StatusOK, workflowsDeployedResponse{Workflows: out, Total: len(out)})
}
