package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"launch-watch/internal/ingestion"
	"launch-watch/internal/observability"
	"launch-watch/internal/tracker"
)

// SnapshotSource provides the latest snapshot.
type SnapshotSource interface {
	Snapshot() *tracker.Snapshot
}

// StatusSource provides scheduler status.
type StatusSource interface {
	Status() ingestion.Status
}

// ServerOptions configures Server.
type ServerOptions struct {
	Snapshots SnapshotSource
	Status    StatusSource
	// Account and Profile are reported by /status.
	Account string
	Profile string
	Logger  *zap.Logger
}

// Server serves /results, /status, /health and /metrics.
type Server struct {
	snapshots SnapshotSource
	status    StatusSource
	account   string
	profile   string
	started   time.Time
	logger    *zap.Logger
}

// NewServer creates a feed server.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		snapshots: opts.Snapshots,
		status:    opts.Status,
		account:   opts.Account,
		profile:   opts.Profile,
		started:   time.Now(),
		logger:    logger.Named("http"),
	}
}

// NewRouter returns a router with all feed routes.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/results", s.handleResults).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, NewSnapshotView(s.snapshots.Snapshot()))
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status       string     `json:"status"`
	Uptime       string     `json:"uptime"`
	Started      time.Time  `json:"started"`
	Account      string     `json:"account"`
	Profile      string     `json:"profile"`
	State        string     `json:"state"`
	Watermark    string     `json:"watermark"`
	Results      int        `json:"results"`
	Cycles       uint64     `json:"cycles"`
	FailedCycles uint64     `json:"failed_cycles"`
	LastCycleID  string     `json:"last_cycle_id,omitempty"`
	LastCycleAt  *time.Time `json:"last_cycle_at,omitempty"`
	LastDuration string     `json:"last_duration,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:  "running",
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Started: s.started,
		Account: s.account,
		Profile: s.profile,
	}

	if snap := s.snapshots.Snapshot(); snap != nil {
		resp.Watermark = snap.Watermark
		resp.Results = len(snap.Results)
	}

	if s.status != nil {
		st := s.status.Status()
		resp.State = st.State
		resp.Cycles = st.Cycles
		resp.FailedCycles = st.FailedCycles
		resp.LastCycleID = st.LastCycleID
		resp.LastError = st.LastError
		if !st.LastCycleAt.IsZero() {
			at := st.LastCycleAt
			resp.LastCycleAt = &at
			resp.LastDuration = st.LastDuration.String()
		}
	}

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
