package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
)

// Handler implements the compositor side of the control channel.
// Implementations should be safe for concurrent use.
type Handler interface {
	// Ping reports whether the compositor considers itself healthy.
	Ping(ctx context.Context) bool

	// ListViews returns the tracked views.
	ListViews(ctx context.Context) []View

	// Run launches a client command and returns its pid.
	Run(ctx context.Context, cmd string) (int, error)

	// MoveCursor moves the pointer.
	MoveCursor(ctx context.Context, x, y int) error

	// FeedButton injects a pointer button event.
	FeedButton(ctx context.Context, button string, mode ButtonMode) error

	// FeedKey injects a keyboard event.
	FeedKey(ctx context.Context, key string, mode ButtonMode) error

	// LayoutViews applies geometry to views by id.
	LayoutViews(ctx context.Context, entries []LayoutEntry) error
}

// Server listens for control channel requests on a Unix domain socket.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	shutdown bool
}

// NewServer creates a server bound to socketPath.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger.With("component", "ipc-server"),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Path returns the path to the Unix socket.
func (s *Server) Path() string {
	return s.socketPath
}

// Start listens and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.StartAsync(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Shutdown()
}

// StartAsync starts the server in the background and returns immediately.
// Use Shutdown() to stop the server.
func (s *Server) StartAsync(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	s.listener = listener

	s.logger.Info("control socket listening", "socket", s.socketPath)

	go s.acceptLoop(ctx)
	return nil
}

// Shutdown closes the listener and every open connection, then removes the socket.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Error("error closing listener", "error", err)
		}
	}

	s.wg.Wait()

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("error removing socket", "error", err)
	}

	s.logger.Info("control socket stopped")
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()

			if shutdown || errors.Is(err, net.ErrClosed) {
				return
			}

			select {
			case <-ctx.Done():
				return
			default:
			}

			s.logger.Error("accept error", "error", err)
			continue
		}

		s.mu.Lock()
		if s.shutdown {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		body, err := ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		reply := s.handleRequest(ctx, body)

		if err := WriteFrame(conn, reply); err != nil {
			s.logger.Error("write error", "error", err)
			return
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, body []byte) any {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Error("parse error", "error", err, "data", string(body))
		return &ErrorReply{Error: fmt.Sprintf("failed to parse request: %v", err)}
	}

	s.logger.Debug("handling request", "method", req.Method)

	switch req.Method {
	case MethodPing:
		if !s.handler.Ping(ctx) {
			return &ResultReply{Result: "unresponsive"}
		}
		return &ResultReply{Result: ResultOK}

	case MethodListViews:
		views := s.handler.ListViews(ctx)
		if views == nil {
			views = []View{}
		}
		return views

	case MethodRun:
		var data RunData
		if err := req.Decode(&data); err != nil {
			return errorReply(err)
		}
		pid, err := s.handler.Run(ctx, data.Cmd)
		if err != nil {
			return errorReply(err)
		}
		return &RunReply{Result: ResultOK, PID: pid}

	case MethodMoveCursor:
		var data CursorData
		if err := req.Decode(&data); err != nil {
			return errorReply(err)
		}
		return ack(s.handler.MoveCursor(ctx, data.X, data.Y))

	case MethodFeedButton:
		var data ButtonData
		if err := req.Decode(&data); err != nil {
			return errorReply(err)
		}
		if !data.Mode.Valid() {
			return &ErrorReply{Error: fmt.Sprintf("invalid mode %q", data.Mode)}
		}
		return ack(s.handler.FeedButton(ctx, data.Button, data.Mode))

	case MethodFeedKey:
		var data KeyData
		if err := req.Decode(&data); err != nil {
			return errorReply(err)
		}
		if !data.Mode.Valid() {
			return &ErrorReply{Error: fmt.Sprintf("invalid mode %q", data.Mode)}
		}
		return ack(s.handler.FeedKey(ctx, data.Key, data.Mode))

	case MethodLayoutViews:
		var data LayoutData
		if err := req.Decode(&data); err != nil {
			return errorReply(err)
		}
		return ack(s.handler.LayoutViews(ctx, data.Views))

	default:
		s.logger.Warn("unknown method", "method", req.Method)
		return &ErrorReply{Error: fmt.Sprintf("No such method found: %s", req.Method)}
	}
}

func ack(err error) any {
	if err != nil {
		return errorReply(err)
	}
	return &ResultReply{Result: ResultOK}
}

func errorReply(err error) *ErrorReply {
	return &ErrorReply{Error: err.Error()}
}
