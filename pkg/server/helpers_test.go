package server

import (
	"encoding/json"
	"io"
	"log"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/AdhikowshikJ/cli-chat/pkg/auth"
)

// initTestLoggers discards log output to keep test output clean
func initTestLoggers(t *testing.T) {
	errorLog = log.New(io.Discard, "ERROR: ", log.LstdFlags)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)
}

// mockConn is an in-memory net.Conn for driving handlers directly
type mockConn struct {
	mu     sync.Mutex
	closed bool
	wrote  []byte
}

func newMockConn() *mockConn { return &mockConn{} }

func (c *mockConn) Read(b []byte) (int, error) { return 0, io.EOF }

func (c *mockConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wrote = append(c.wrote, b...)
	return len(b), nil
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *mockConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (c *mockConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (c *mockConn) SetDeadline(t time.Time) error      { return nil }
func (c *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *mockConn) SetWriteDeadline(t time.Time) error { return nil }

// testServer creates a server with a temp credential database and
// upload directory. No listener is started; tests drive dispatch
// directly.
func testServer(t *testing.T) *Server {
	t.Helper()
	initTestLoggers(t)

	store, err := auth.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	files, err := NewFileStore(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	cfg := DefaultConfig()
	return &Server{
		store:    store,
		sessions: NewSessionManager(cfg.SendQueueDepth, 0, 0), // no rate limit in tests
		files:    files,
		config:   cfg,
		metrics:  nil, // skip metrics to avoid registration conflicts
		shutdown: make(chan struct{}),
	}
}

// newTestSession creates a session on a mock connection. The write loop
// is not started, so responses stay queued on sess.out for recv.
func newTestSession(t *testing.T, srv *Server) *Session {
	t.Helper()
	return srv.sessions.CreateSession(newMockConn())
}

// loginSession registers (once) and logs a user in through the real
// dispatch path.
func loginSession(t *testing.T, srv *Server, sess *Session, username string) {
	t.Helper()
	if !srv.store.Exists(username) {
		if err := srv.store.Register(username, "pw"); err != nil {
			t.Fatalf("Failed to register %s: %v", username, err)
		}
	}
	srv.dispatch(sess, []byte(`{"type":"AUTH","action":"login","username":"`+username+`","password":"pw"}`))
	resp := recv(t, sess)
	if resp["status"] != "success" {
		t.Fatalf("Login for %s failed: %v", username, resp)
	}
}

// recv pops the next queued response from the session and unmarshals it
func recv(t *testing.T, sess *Session) map[string]any {
	t.Helper()
	select {
	case line := <-sess.out:
		var msg map[string]any
		if err := json.Unmarshal(line, &msg); err != nil {
			t.Fatalf("Failed to unmarshal response %q: %v", line, err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for response")
		return nil
	}
}

// noRecv asserts nothing is queued on the session
func noRecv(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case line := <-sess.out:
		t.Fatalf("Unexpected response: %s", line)
	default:
	}
}
