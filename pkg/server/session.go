package server

import (
	"net"
	"sync"

	"github.com/AdhikowshikJ/cli-chat/pkg/protocol"
	"golang.org/x/time/rate"
)

// PendingDownload records the most recent direct-send offer relayed to
// this connection. Single slot: a newer offer overwrites it, and there
// is no timeout.
type PendingDownload struct {
	FromUser     string
	Filename     string
	TargetFolder string
}

// Session represents one live client connection and its per-connection
// context. Username is empty until login succeeds.
type Session struct {
	ID   uint64
	Conn net.Conn

	mu              sync.RWMutex
	username        string
	pendingDownload *PendingDownload

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	limiter *rate.Limiter
}

// Username returns the authenticated username, or "" before login.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) setUsername(name string) {
	s.mu.Lock()
	s.username = name
	s.mu.Unlock()
}

// SetPendingDownload stashes the latest direct-send offer on the session.
func (s *Session) SetPendingDownload(pd *PendingDownload) {
	s.mu.Lock()
	s.pendingDownload = pd
	s.mu.Unlock()
}

// GetPendingDownload returns the latest direct-send offer, if any.
func (s *Session) GetPendingDownload() *PendingDownload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingDownload
}

// Send queues a response for delivery. Writes are fire-and-forget: a
// slow or dead peer never blocks the caller, and an overflowing queue
// drops the message.
func (s *Session) Send(v any) {
	line, err := protocol.EncodeResponse(v)
	if err != nil {
		errorLog.Printf("Session %d: encode failed: %v", s.ID, err)
		return
	}
	select {
	case s.out <- line:
	case <-s.done:
	default:
		debugLog.Printf("Session %d: send queue full, dropping message", s.ID)
	}
}

// Close tears the connection down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.Conn.Close()
	})
}

// writeLoop drains the send queue onto the connection. Runs in its own
// goroutine for the life of the session.
func (s *Session) writeLoop() {
	for {
		select {
		case line := <-s.out:
			if _, err := s.Conn.Write(line); err != nil {
				debugLog.Printf("Session %d: write failed: %v", s.ID, err)
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// SessionManager is the single owned aggregate for all shared mutable
// state: the connection registry (sessions, username bindings) and the
// room directory (membership, admins, pending joins, history). One
// mutex serializes every mutation, so handlers observe a consistent
// view across both.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[uint64]*Session
	users    map[string]*Session // username -> session, online users only
	rooms    map[string]*Room
	userRoom map[string]string // username -> current room name
	nextID   uint64

	sendQueueDepth int
	msgRate        rate.Limit
	msgBurst       int
	metrics        *Metrics
}

// NewSessionManager creates a session manager. msgRate/msgBurst bound
// how fast one session may submit chat messages; sendQueueDepth bounds
// the per-session outbound queue.
func NewSessionManager(sendQueueDepth int, msgRate float64, msgBurst int) *SessionManager {
	if sendQueueDepth <= 0 {
		sendQueueDepth = 256
	}
	if msgBurst <= 0 {
		msgBurst = 10
	}
	limit := rate.Inf
	if msgRate > 0 {
		limit = rate.Limit(msgRate)
	}
	return &SessionManager{
		sessions:       make(map[uint64]*Session),
		users:          make(map[string]*Session),
		rooms:          make(map[string]*Room),
		userRoom:       make(map[string]string),
		nextID:         1,
		sendQueueDepth: sendQueueDepth,
		msgRate:        limit,
		msgBurst:       msgBurst,
	}
}

// SetMetrics attaches metrics to the session manager.
func (sm *SessionManager) SetMetrics(metrics *Metrics) {
	sm.metrics = metrics
}

// CreateSession registers a new, unauthenticated session for conn.
func (sm *SessionManager) CreateSession(conn net.Conn) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sess := &Session{
		ID:      sm.nextID,
		Conn:    conn,
		out:     make(chan []byte, sm.sendQueueDepth),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(sm.msgRate, sm.msgBurst),
	}
	sm.nextID++
	sm.sessions[sess.ID] = sess

	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(len(sm.sessions))
		sm.metrics.RecordSessionCreated()
	}

	return sess
}

// RemoveSession tears down a session: unbinds its username, removes it
// from its room (notifying the remaining members), and closes the
// connection. Idempotent.
func (sm *SessionManager) RemoveSession(sess *Session) {
	sm.mu.Lock()
	if _, ok := sm.sessions[sess.ID]; !ok {
		sm.mu.Unlock()
		return
	}
	delete(sm.sessions, sess.ID)

	username := sess.Username()
	if username != "" {
		delete(sm.users, username)
		sm.leaveRoomLocked(username, true)
	}
	sessionCount := len(sm.sessions)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(sessionCount)
		sm.metrics.RecordSessionDisconnected()
	}

	sess.Close()
}

// Login binds username to sess. Returns false if the username already
// has a live connection.
func (sm *SessionManager) Login(sess *Session, username string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, online := sm.users[username]; online {
		return false
	}
	sm.users[username] = sess
	sess.setUsername(username)
	return true
}

// Lookup returns the session bound to username, if online.
func (sm *SessionManager) Lookup(username string) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sess, ok := sm.users[username]
	return sess, ok
}

// OnlineUsers returns every logged-in username.
func (sm *SessionManager) OnlineUsers() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	users := make([]string, 0, len(sm.users))
	for name := range sm.users {
		users = append(users, name)
	}
	return users
}

// CountOnlineUsers returns the number of logged-in users.
func (sm *SessionManager) CountOnlineUsers() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.users)
}

// BroadcastToAll sends a response to every session except the one named.
// Used for the no-room fallback broadcast.
func (sm *SessionManager) BroadcastToAll(exclude *Session, v any) {
	sm.mu.Lock()
	targets := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		if sess != exclude {
			targets = append(targets, sess)
		}
	}
	sm.mu.Unlock()

	for _, sess := range targets {
		sess.Send(v)
	}
}

// CloseAll closes every session.
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		sessions = append(sessions, sess)
	}
	sm.sessions = make(map[uint64]*Session)
	sm.users = make(map[string]*Session)
	sm.rooms = make(map[string]*Room)
	sm.userRoom = make(map[string]string)
	sm.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
