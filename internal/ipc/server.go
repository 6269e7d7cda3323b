package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"thorn/internal/api"
	"thorn/internal/daemon"
	"thorn/internal/logging"
	"thorn/internal/schedule"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Thorn", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun thorn daemon stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return logging.NewComponentLogger(s.logger, "ipc")
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.SupervisorState = status.SupervisorState
	resp.ScheduleDBPath = status.ScheduleDBPath
	resp.LockPath = status.LockPath
	resp.EntryStats = make(map[string]int, len(status.EntryStats))
	for k, v := range status.EntryStats {
		resp.EntryStats[string(k)] = v
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) EntryAdd(req EntryAddRequest, resp *EntryAddResponse) error {
	entry, err := s.daemon.AddEntry(s.ctx, req.Entry)
	if err != nil {
		return err
	}
	resp.Entry = api.FromEntry(entry)
	s.log().Info("entry scheduled via IPC",
		logging.String(logging.FieldEventType, "entry_add"),
		logging.String(logging.FieldEntryID, entry.ID),
		logging.String(logging.FieldEntryKind, string(entry.Kind)))
	return nil
}

func (s *service) EntryCancel(req EntryCancelRequest, resp *EntryCancelResponse) error {
	if req.ID == "" {
		return errors.New("entry cancel requires an id")
	}
	if err := s.daemon.CancelEntry(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Cancelled = true
	s.log().Info("entry cancelled via IPC",
		logging.String(logging.FieldEventType, "entry_cancel"),
		logging.String(logging.FieldEntryID, req.ID))
	return nil
}

func (s *service) EntryReset(req EntryResetRequest, resp *EntryResetResponse) error {
	if req.ID == "" {
		return errors.New("entry reset requires an id")
	}
	entry, err := s.daemon.ResetEntry(s.ctx, req.ID, req.Word)
	if err != nil {
		return err
	}
	resp.Entry = api.FromEntry(entry)
	s.log().Info("switch reset via IPC",
		logging.String(logging.FieldEventType, "entry_reset"),
		logging.String(logging.FieldEntryID, req.ID))
	return nil
}

func (s *service) EntryList(req EntryListRequest, resp *EntryListResponse) error {
	statuses := make([]schedule.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := schedule.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	entries, err := s.daemon.ListEntries(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Entries = api.FromEntries(entries)
	return nil
}

func (s *service) EntryDescribe(req EntryDescribeRequest, resp *EntryDescribeResponse) error {
	if req.ID == "" {
		return errors.New("entry describe requires an id")
	}
	entry, err := s.daemon.GetEntry(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Entry = api.FromEntry(entry)
	return nil
}

func (s *service) Contacts(_ ContactsRequest, resp *ContactsResponse) error {
	contacts, err := s.daemon.Contacts(s.ctx)
	if err != nil {
		return err
	}
	resp.Contacts = make([]Contact, 0, len(contacts))
	for _, contact := range contacts {
		resp.Contacts = append(resp.Contacts, api.FromContact(contact))
	}
	return nil
}

func (s *service) ContactLink(_ ContactLinkRequest, resp *ContactLinkResponse) error {
	link, err := s.daemon.ContactLink(s.ctx)
	if err != nil {
		return err
	}
	resp.Link = link
	return nil
}
