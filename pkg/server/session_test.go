package server

import (
	"testing"
)

func TestLoginBindsUsername(t *testing.T) {
	initTestLoggers(t)
	sm := NewSessionManager(16, 0, 0)

	sess := sm.CreateSession(newMockConn())
	if sess.Username() != "" {
		t.Fatal("New session must start unauthenticated")
	}

	if !sm.Login(sess, "alice") {
		t.Fatal("First login must succeed")
	}
	if sess.Username() != "alice" {
		t.Fatalf("Expected alice, got %q", sess.Username())
	}

	got, ok := sm.Lookup("alice")
	if !ok || got != sess {
		t.Fatal("Lookup must return the bound session")
	}
}

func TestSecondLoginRejected(t *testing.T) {
	initTestLoggers(t)
	sm := NewSessionManager(16, 0, 0)

	first := sm.CreateSession(newMockConn())
	second := sm.CreateSession(newMockConn())

	if !sm.Login(first, "alice") {
		t.Fatal("First login must succeed")
	}
	if sm.Login(second, "alice") {
		t.Fatal("Second login for an online username must fail")
	}
	if second.Username() != "" {
		t.Fatal("Rejected login must not bind the session")
	}
}

func TestRemoveSessionFreesUsername(t *testing.T) {
	initTestLoggers(t)
	sm := NewSessionManager(16, 0, 0)

	sess := sm.CreateSession(newMockConn())
	sm.Login(sess, "alice")
	sm.RemoveSession(sess)

	if _, ok := sm.Lookup("alice"); ok {
		t.Fatal("Removed session must release its username")
	}

	again := sm.CreateSession(newMockConn())
	if !sm.Login(again, "alice") {
		t.Fatal("Username must be reusable after disconnect")
	}
}

func TestRemoveSessionIdempotent(t *testing.T) {
	initTestLoggers(t)
	sm := NewSessionManager(16, 0, 0)

	sess := sm.CreateSession(newMockConn())
	sm.Login(sess, "alice")
	sm.RemoveSession(sess)
	sm.RemoveSession(sess) // no-op
}

func TestSendDropsWhenQueueFull(t *testing.T) {
	initTestLoggers(t)
	sm := NewSessionManager(2, 0, 0)

	sess := sm.CreateSession(newMockConn())
	// No write loop is draining; the third send must drop, not block.
	for i := 0; i < 5; i++ {
		sess.Send(map[string]string{"type": "MESSAGE"})
	}
	if len(sess.out) != 2 {
		t.Fatalf("Expected full queue of 2, got %d", len(sess.out))
	}
}

func TestOnlineUsers(t *testing.T) {
	initTestLoggers(t)
	sm := NewSessionManager(16, 0, 0)

	names := map[string]bool{"alice": true, "bob": true}
	for name := range names {
		sess := sm.CreateSession(newMockConn())
		sm.Login(sess, name)
	}

	users := sm.OnlineUsers()
	if len(users) != 2 {
		t.Fatalf("Expected 2 online users, got %v", users)
	}
	for _, name := range users {
		if !names[name] {
			t.Fatalf("Unexpected user %q", name)
		}
	}
	if sm.CountOnlineUsers() != 2 {
		t.Fatalf("Expected count 2, got %d", sm.CountOnlineUsers())
	}
}
