package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"platter/internal/config"
	"platter/internal/daemon"
	"platter/internal/logging"
	"platter/internal/queue"
)

// Server exposes daemon control over a unix socket so the CLI can talk to a
// running platterd without elevated privileges or open TCP ports.
type Server struct {
	socketPath string
	logger     *slog.Logger
	daemon     *daemon.Daemon

	listener net.Listener
	server   *http.Server
}

// NewServer builds the control server for the given daemon.
func NewServer(cfg *config.Config, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("ipc server requires config and daemon")
	}
	socketPath := strings.TrimSpace(cfg.Paths.SocketPath)
	if socketPath == "" {
		return nil, errors.New("socket path not configured")
	}

	srv := &Server{
		socketPath: socketPath,
		logger:     logging.NewComponentLogger(logger, "ipc-server"),
		daemon:     d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/queue", srv.handleQueueList)
	mux.HandleFunc("/api/queue/retry", srv.handleQueueRetry)
	mux.HandleFunc("/api/queue/clear", srv.handleQueueClear)
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/notify/test", srv.handleTestNotify)
	mux.HandleFunc("/api/detect", srv.handleDetect)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Start begins serving on the unix socket, replacing any stale socket file.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ipc server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("ipc server listening", logging.String("socket", s.socketPath))
	return nil
}

// Stop shuts the server down and removes the socket file.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	_ = os.Remove(s.socketPath)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Running:        status.Running,
		DiscMonitoring: status.DiscMonitoring,
		QueueDBPath:    status.QueueDBPath,
		LockFilePath:   status.LockFilePath,
		Workflow:       fromStatusSummary(status.Workflow),
	})
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, parsed)
	}

	items, err := s.daemon.ListQueue(r.Context(), statuses)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := QueueListResponse{Items: make([]QueueItemPayload, 0, len(items))}
	for _, item := range items {
		payload.Items = append(payload.Items, fromItem(item))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req RetryRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "invalid retry request")
			return
		}
	}
	count, err := s.daemon.RetryFailed(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var (
		count int64
		err   error
	)
	switch scope := strings.TrimSpace(r.URL.Query().Get("scope")); scope {
	case "", "all":
		count, err = s.daemon.ClearQueue(r.Context())
	case "completed":
		count, err = s.daemon.ClearCompleted(r.Context())
	case "failed":
		count, err = s.daemon.ClearFailed(r.Context())
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown clear scope %q", scope))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := s.daemon.QueueHealth(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := s.daemon.Status(r.Context())
	payload := HealthResponse{
		Total:      summary.Total,
		Pending:    summary.Pending,
		Processing: summary.Processing,
		Failed:     summary.Failed,
		Review:     summary.Review,
		Completed:  summary.Completed,
	}
	for _, health := range status.Workflow.StageHealth {
		payload.Stages = append(payload.Stages, StageHealthPayload{
			Name:   health.Name,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}
	sort.Slice(payload.Stages, func(i, j int) bool {
		return payload.Stages[i].Name < payload.Stages[j].Name
	})
	if dbHealth, dbErr := s.daemon.DatabaseHealth(r.Context()); dbErr == nil {
		payload.Database = &DatabaseHealthPayload{
			Path:           dbHealth.DBPath,
			Exists:         dbHealth.DatabaseExists,
			Readable:       dbHealth.DatabaseReadable,
			SchemaVersion:  dbHealth.SchemaVersion,
			MissingColumns: dbHealth.MissingColumns,
			IntegrityCheck: dbHealth.IntegrityCheck,
			Error:          dbHealth.Error,
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleTestNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, NotifyResponse{Sent: sent, Message: message})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	device := strings.TrimSpace(r.URL.Query().Get("device"))
	result, err := s.daemon.HandleDiscInserted(r.Context(), device)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, DetectResponse{
		Handled: result.Handled,
		ItemID:  result.ItemID,
		Message: result.Message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
