package server

import (
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/AdhikowshikJ/cli-chat/pkg/auth"
	"github.com/AdhikowshikJ/cli-chat/pkg/protocol"
)

// Server is the chat server: it owns the credential store, the session
// manager (connection registry + room directory), and the upload store.
type Server struct {
	store    *auth.Store
	sessions *SessionManager
	files    *FileStore
	config   ServerConfig
	metrics  *Metrics
	listener net.Listener
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// ServerConfig holds the runtime server configuration
type ServerConfig struct {
	TCPPort          int
	HTTPPort         int
	MessageRateLimit float64 // chat messages per second per session
	MessageBurst     int
	MaxLineBytes     int
	SendQueueDepth   int
	MaxFileBytes     int64
}

// DefaultConfig returns default server configuration
func DefaultConfig() ServerConfig {
	cfg := DefaultTOMLConfig()
	return cfg.ToServerConfig()
}

// NewServer creates a new server instance backed by the credential
// database at dbPath and the upload store at uploadDir.
func NewServer(dbPath, uploadDir string, config ServerConfig) (*Server, error) {
	store, err := auth.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	files, err := NewFileStore(uploadDir, config.MaxFileBytes)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open upload store: %w", err)
	}

	return &Server{
		store:    store,
		sessions: NewSessionManager(config.SendQueueDepth, config.MessageRateLimit, config.MessageBurst),
		files:    files,
		config:   config,
		shutdown: make(chan struct{}),
	}, nil
}

// EnableMetrics attaches Prometheus metrics to the server.
func (s *Server) EnableMetrics() {
	s.metrics = NewMetrics()
	s.sessions.SetMetrics(s.metrics)
}

// Start begins accepting TCP connections.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.TCPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	log.Printf("TCP server listening on %s", addr)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the listen address, useful when the configured port is 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	close(s.shutdown)

	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}

	s.wg.Wait()
	s.sessions.CloseAll()

	return s.store.Close()
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				errorLog.Printf("Accept error: %v", err)
				continue
			}
		}

		go s.handleConnection(conn)
	}
}

// handleConnection runs the session lifecycle for one client: create
// session, pump inbound lines through the dispatcher, tear down on any
// read error.
func (s *Server) handleConnection(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	sess := s.sessions.CreateSession(conn)
	defer s.sessions.RemoveSession(sess)

	go sess.writeLoop()

	log.Printf("Client connected: %s (session %d)", conn.RemoteAddr(), sess.ID)

	dec := protocol.NewDecoder(conn, s.config.MaxLineBytes)
	for {
		line, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				log.Printf("Session %d disconnected", sess.ID)
			} else {
				debugLog.Printf("Session %d read error: %v", sess.ID, err)
			}
			return
		}
		if len(line) == 0 {
			continue
		}
		s.dispatch(sess, line)
	}
}

// dispatch decodes one wire line and routes it to the right handler. A
// malformed line is answered with a parse-error notice and the
// connection keeps going; nothing here is fatal to the session.
func (s *Server) dispatch(sess *Session, line []byte) {
	req, err := protocol.DecodeRequest(line)
	if err != nil {
		debugLog.Printf("Session %d: %v", sess.ID, err)
		sess.Send(&protocol.ErrorNotice{
			Type:    protocol.TypeError,
			Message: "Invalid message format",
		})
		return
	}

	// Only AUTH requests are accepted before login.
	_, isAuth := req.(*protocol.AuthRequest)
	if sess.Username() == "" && !isAuth {
		sess.Send(&protocol.ErrorNotice{
			Type:    protocol.TypeError,
			Message: "Not authenticated",
		})
		return
	}

	if s.metrics != nil {
		s.metrics.RecordRequest(requestType(req))
	}

	switch req := req.(type) {
	case *protocol.AuthRequest:
		s.handleAuth(sess, req)
	case *protocol.CommandRequest:
		s.handleCommand(sess, req)
	case *protocol.MessageRequest:
		s.handleMessage(sess, req)
	case *protocol.PrivateMessageRequest:
		s.handlePrivateMessage(sess, req)
	case *protocol.FileUploadRequest:
		s.handleFileUpload(sess, req)
	case *protocol.FileDownloadRequest:
		s.handleFileDownload(sess, req)
	case *protocol.SendFileRequest:
		s.handleSendFile(sess, req)
	}
}

func requestType(req any) string {
	switch req.(type) {
	case *protocol.AuthRequest:
		return protocol.TypeAuth
	case *protocol.CommandRequest:
		return protocol.TypeCommand
	case *protocol.MessageRequest:
		return protocol.TypeMessage
	case *protocol.PrivateMessageRequest:
		return protocol.TypePrivateMessage
	case *protocol.FileUploadRequest:
		return protocol.TypeFileUpload
	case *protocol.FileDownloadRequest:
		return protocol.TypeFileDownload
	case *protocol.SendFileRequest:
		return protocol.TypeSendFile
	default:
		return "unknown"
	}
}

// allowMessage applies the per-session chat rate limit.
func (s *Server) allowMessage(sess *Session) bool {
	if sess.limiter.Allow() {
		return true
	}
	sess.Send(&protocol.ErrorNotice{
		Type:    protocol.TypeError,
		Message: "Rate limit exceeded, slow down",
	})
	return false
}
