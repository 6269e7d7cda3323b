package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thorn/internal/api"
	"thorn/internal/config"
	"thorn/internal/logging"
	"thorn/internal/schedule"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/entries", authMiddleware(token, srv.handleEntries))
	mux.HandleFunc("/api/entries/", authMiddleware(token, srv.handleEntry))
	mux.HandleFunc("/api/contacts", authMiddleware(token, srv.handleContacts))
	mux.HandleFunc("/healthz", srv.handleHealthz)
	if d.gatherer != nil {
		mux.Handle("/metrics", authMiddleware(token, promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}).ServeHTTP))
	}

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	stats := make(map[string]int, len(status.EntryStats))
	for k, v := range status.EntryStats {
		stats[string(k)] = v
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:         status.Running,
		PID:             status.PID,
		SupervisorState: status.SupervisorState,
		EntryStats:      stats,
		ScheduleDBPath:  status.ScheduleDBPath,
		LockPath:        status.LockPath,
	})
}

func (s *apiServer) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var statuses []schedule.Status
		for _, value := range r.URL.Query()["status"] {
			parsed, ok := schedule.ParseStatus(value)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
				return
			}
			statuses = append(statuses, parsed)
		}
		entries, err := s.daemon.ListEntries(r.Context(), statuses)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string][]api.Entry{"entries": api.FromEntries(entries)})
	case http.MethodPost:
		var req api.AddEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		entry, err := s.daemon.AddEntry(r.Context(), req)
		if err != nil {
			s.writeScheduleError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.FromEntry(entry))
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleEntry(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/entries/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "entry not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		entry, err := s.daemon.GetEntry(r.Context(), id)
		if err != nil {
			s.writeScheduleError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromEntry(entry))
	case action == "cancel" && r.Method == http.MethodPost:
		if err := s.daemon.CancelEntry(r.Context(), id); err != nil {
			s.writeScheduleError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	case action == "reset" && r.Method == http.MethodPost:
		var req api.ResetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		entry, err := s.daemon.ResetEntry(r.Context(), id, req.Word)
		if err != nil {
			s.writeScheduleError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromEntry(entry))
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleContacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	contacts, err := s.daemon.Contacts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	out := make([]api.Contact, 0, len(contacts))
	for _, contact := range contacts {
		out = append(out, api.FromContact(contact))
	}
	s.writeJSON(w, http.StatusOK, map[string][]api.Contact{"contacts": out})
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) writeScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, schedule.ErrInvalidSchedule),
		errors.Is(err, schedule.ErrWrongResetWord),
		errors.Is(err, schedule.ErrNotSwitch):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, schedule.ErrAlreadyTerminal):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
