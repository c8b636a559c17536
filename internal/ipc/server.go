package ipc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// Handler is a function that handles a request and returns a response.
type Handler func(msgType uint16, payload []byte) ([]byte, error)

// Server accepts connections from register clients.
type Server struct {
	listener   net.Listener
	socketPath string
	handler    Handler
	log        *slog.Logger
	closed     atomic.Bool
	wg         sync.WaitGroup
	conns      map[net.Conn]struct{}
	connsMu    sync.Mutex
}

// NewServer creates a server listening on the given Unix socket path. A stale
// socket file at that path is removed first.
func NewServer(socketPath string, handler Handler, log *slog.Logger) (*Server, error) {
	removeSocket(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	s := NewServerFromListener(listener, handler, log)
	s.socketPath = socketPath
	return s, nil
}

// NewServerFromListener serves on an existing listener. Close does not remove
// any socket file.
func NewServerFromListener(l net.Listener, handler Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		listener: l,
		handler:  handler,
		log:      log,
		conns:    make(map[net.Conn]struct{}),
	}
}

// SocketPath returns the path to the Unix socket.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections and handles requests.
// This blocks until Close is called.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
		s.log.Debug("client disconnected")
	}()
	s.log.Debug("client connected")

	for {
		if s.closed.Load() {
			return
		}

		header, payload, err := ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || s.closed.Load() {
				return
			}
			s.sendError(conn, ErrCodeIO, fmt.Sprintf("read request: %v", err), "")
			return
		}

		resp, err := s.handler(header.Type, payload)
		if err != nil {
			s.sendErrorFromGoError(conn, err)
			continue
		}

		if err := WriteMessage(conn, MsgResponse, resp); err != nil {
			s.log.Debug("write response", "error", err)
			return
		}
	}
}

func (s *Server) sendError(conn net.Conn, code uint8, message, op string) {
	enc := NewEncoder()
	EncodeError(enc, code, message, op)
	if err := WriteMessage(conn, MsgError, enc.Bytes()); err != nil {
		s.log.Debug("write error response", "error", err)
	}
}

func (s *Server) sendErrorFromGoError(conn net.Conn, err error) {
	var ipcErr *IPCError
	if errors.As(err, &ipcErr) {
		s.sendError(conn, ipcErr.Code, ipcErr.Message, ipcErr.Op)
		return
	}
	s.sendError(conn, ErrCodeUnknown, err.Error(), "")
}

// Close shuts down the server.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Close listener first to stop accepting new connections
	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()

	if s.socketPath != "" {
		removeSocket(s.socketPath)
	}

	return nil
}

// Mux is a message type multiplexer for the server.
type Mux struct {
	handlers map[uint16]MuxHandler
	mu       sync.RWMutex
}

// MuxHandler handles a specific message type.
type MuxHandler func(dec *Decoder) ([]byte, error)

// NewMux creates a new message multiplexer.
func NewMux() *Mux {
	return &Mux{
		handlers: make(map[uint16]MuxHandler),
	}
}

// Handle registers a handler for a message type.
func (m *Mux) Handle(msgType uint16, handler MuxHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[msgType] = handler
}

// Handler returns a Handler function for use with Server.
func (m *Mux) Handler() Handler {
	return func(msgType uint16, payload []byte) ([]byte, error) {
		m.mu.RLock()
		handler, ok := m.handlers[msgType]
		m.mu.RUnlock()

		if !ok {
			return nil, &IPCError{
				Code:    ErrCodeInvalidArgument,
				Message: fmt.Sprintf("unknown message type: 0x%04x", msgType),
			}
		}

		return handler(NewDecoder(payload))
	}
}

// ResponseBuilder helps build response payloads.
type ResponseBuilder struct {
	enc *Encoder
}

// NewResponseBuilder creates a response builder with the OK status byte
// already written.
func NewResponseBuilder() *ResponseBuilder {
	r := &ResponseBuilder{enc: NewEncoder()}
	r.enc.Uint8(ErrCodeOK)
	return r
}

func (r *ResponseBuilder) Uint16(v uint16) *ResponseBuilder {
	r.enc.Uint16(v)
	return r
}

func (r *ResponseBuilder) Uint64(v uint64) *ResponseBuilder {
	r.enc.Uint64(v)
	return r
}

func (r *ResponseBuilder) String(s string) *ResponseBuilder {
	r.enc.String(s)
	return r
}

func (r *ResponseBuilder) Bytes(b []byte) *ResponseBuilder {
	r.enc.WriteBytes(b)
	return r
}

// Build returns the encoded response bytes.
func (r *ResponseBuilder) Build() []byte {
	return r.enc.Bytes()
}
