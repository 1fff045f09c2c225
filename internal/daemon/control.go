package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/s22625/supcut/internal/store"
)

const socketFile = "supcut.sock"

// Control request types.
const (
	RequestRun    = "run"
	RequestStatus = "status"
)

// ErrNotRunning is returned by Send when no watcher listens on the project's
// control socket.
var ErrNotRunning = errors.New("no supcut watcher is running for this project")

// SocketFilePath returns the control socket path inside stateDir.
func SocketFilePath(stateDir string) string {
	return filepath.Join(stateDir, socketFile)
}

type Request struct {
	Type string `json:"type"`
}

type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	PID        int       `json:"pid,omitempty"`
	Running    bool      `json:"running"`
	RunCount   int       `json:"run_count"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
	StatusLine string    `json:"status_line,omitempty"`
	Failing    []string  `json:"failing,omitempty"`
	Watched    int       `json:"watched"`
}

// ControlServer answers run-now and status requests from other supcut
// processes on a unix socket.
type ControlServer struct {
	path     string
	store    *store.RunStore
	runNow   func()
	logger   *slog.Logger
	listener net.Listener
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewControlServer(path string, st *store.RunStore, runNow func(), logger *slog.Logger) *ControlServer {
	return &ControlServer{
		path:   path,
		store:  st,
		runNow: runNow,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

func (s *ControlServer) Start() error {
	// A stale socket from a crashed watcher blocks Listen.
	os.Remove(s.path)

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("failed to listen on control socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to chmod control socket", "error", err)
	}
	s.logger.Debug("control socket listening", "path", s.path)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *ControlServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.path)
	})
}

func (s *ControlServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Warn("control socket accept error", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *ControlServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	encoder := json.NewEncoder(conn)
	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.logger.Warn("failed to decode control request", "error", err)
		encoder.Encode(Response{Error: "invalid request"})
		return
	}

	var resp Response
	switch req.Type {
	case RequestRun:
		running, _ := s.store.Timing()
		if running {
			resp = Response{Error: "a test run is already in progress"}
			break
		}
		s.runNow()
		resp = Response{OK: true}
	case RequestStatus:
		resp = s.status()
	default:
		resp = Response{Error: fmt.Sprintf("unknown request type %q", req.Type)}
	}
	s.logger.Debug("control request", "type", req.Type, "ok", resp.OK)
	encoder.Encode(resp)
}

func (s *ControlServer) status() Response {
	snap := s.store.Snapshot()
	watched := 0
	for _, w := range snap.Watched {
		if w.Selected {
			watched++
		}
	}
	return Response{
		OK:         true,
		PID:        os.Getpid(),
		Running:    snap.Running,
		RunCount:   snap.RunCount,
		LastRunAt:  snap.LastRunAt,
		StatusLine: snap.StatusLine,
		Failing:    snap.Current.Failing(),
		Watched:    watched,
	}
}

// Send delivers req to the watcher of the project in stateDir.
func Send(stateDir string, req Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", SocketFilePath(stateDir), 5*time.Second)
	if err != nil {
		if GetRunningPID(stateDir) == 0 {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("failed to connect to watcher: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if !resp.OK {
		return &resp, fmt.Errorf("watcher: %s", resp.Error)
	}
	return &resp, nil
}
