package server

import (
	"fmt"

	"github.com/AdhikowshikJ/cli-chat/pkg/protocol"
)

// HistoryLimit bounds the number of retained messages per room. The
// oldest entry is evicted when an eleventh message arrives.
const HistoryLimit = 10

// Room holds all state for one chat room. Lives only while it has at
// least one member; deleting the room drops its admin record, pending
// join requests, and history with it.
type Room struct {
	Name    string
	Members []string // join order
	Admin   string   // founding member; never reassigned
	Pending []string // awaiting admin approval, disjoint from Members
	History []protocol.HistoryEntry
}

func (r *Room) isMember(username string) bool {
	return contains(r.Members, username)
}

func (r *Room) isPending(username string) bool {
	return contains(r.Pending, username)
}

func (r *Room) appendHistory(sender, text string) {
	r.History = append(r.History, protocol.HistoryEntry{Sender: sender, Text: text})
	if len(r.History) > HistoryLimit {
		r.History = r.History[1:]
	}
}

// historySnapshot copies the retained messages so callers can send them
// outside the state lock.
func (r *Room) historySnapshot() []protocol.HistoryEntry {
	history := make([]protocol.HistoryEntry, len(r.History))
	copy(history, r.History)
	return history
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// JoinRoom handles the join command for sess. A join to a nonexistent
// room creates it with the joiner as admin; a join to a live room files
// a pending request with the admin.
func (sm *SessionManager) JoinRoom(sess *Session, name string) {
	username := sess.Username()

	sm.mu.Lock()

	// Leaving the current room first keeps a user in at most one
	// room's member set. This leave is silent.
	sm.leaveRoomLocked(username, false)

	room, ok := sm.rooms[name]
	if !ok || len(room.Members) == 0 {
		room = &Room{
			Name:    name,
			Members: []string{username},
			Admin:   username,
		}
		sm.rooms[name] = room
		sm.userRoom[username] = name
		roomCount := len(sm.rooms)
		history := room.historySnapshot()
		sm.mu.Unlock()

		if sm.metrics != nil {
			sm.metrics.RecordActiveRooms(roomCount)
		}
		sess.Send(&protocol.RoomNotice{
			Type:    protocol.TypeRoom,
			Message: fmt.Sprintf("Joined room '%s' as admin", name),
		})
		sess.Send(&protocol.RoomHistory{
			Type:    protocol.TypeRoomHistory,
			Room:    name,
			History: history,
		})
		return
	}

	if room.isMember(username) || room.isPending(username) {
		sm.mu.Unlock()
		sess.Send(&protocol.RoomNotice{
			Type:    protocol.TypeRoom,
			Message: fmt.Sprintf("Already in or requested to join '%s'", name),
		})
		return
	}

	room.Pending = append(room.Pending, username)
	admin, adminOnline := sm.users[room.Admin]
	sm.mu.Unlock()

	if adminOnline {
		admin.Send(&protocol.RoomJoinRequest{
			Type:     protocol.TypeRoomJoinRequest,
			Room:     name,
			Username: username,
		})
	}
	sess.Send(&protocol.RoomNotice{
		Type:    protocol.TypeRoom,
		Message: fmt.Sprintf("Join request sent to admin of '%s'. Awaiting approval...", name),
	})
}

// Approve admits a pending user into the admin's room.
func (sm *SessionManager) Approve(sess *Session, target string) {
	sm.resolveJoin(sess, target, true)
}

// Reject declines a pending user's join request.
func (sm *SessionManager) Reject(sess *Session, target string) {
	sm.resolveJoin(sess, target, false)
}

// resolveJoin settles a pending join request against the caller's
// current room. Only that room's admin may approve or reject, and the
// target is removed from the pending list either way.
func (sm *SessionManager) resolveJoin(sess *Session, target string, approve bool) {
	username := sess.Username()

	sm.mu.Lock()
	roomName, inRoom := sm.userRoom[username]
	room := sm.rooms[roomName]
	if !inRoom || room == nil || room.Admin != username {
		sm.mu.Unlock()
		sess.Send(&protocol.RoomNotice{
			Type:    protocol.TypeRoom,
			Message: "You are not the admin of any room.",
		})
		return
	}
	if target == "" || !room.isPending(target) {
		sm.mu.Unlock()
		sess.Send(&protocol.RoomNotice{
			Type:    protocol.TypeRoom,
			Message: fmt.Sprintf("No join request from '%s' in '%s'.", target, roomName),
		})
		return
	}

	room.Pending = remove(room.Pending, target)
	targetSess, targetOnline := sm.users[target]

	if !approve {
		sm.mu.Unlock()
		if targetOnline {
			targetSess.Send(&protocol.RoomNotice{
				Type:    protocol.TypeRoom,
				Message: fmt.Sprintf("Your join request to '%s' was rejected by the admin.", roomName),
			})
		}
		return
	}

	room.Members = append(room.Members, target)
	sm.userRoom[target] = roomName
	history := room.historySnapshot()
	peers := sm.memberSessionsLocked(room, target)
	sm.mu.Unlock()

	if targetOnline {
		targetSess.Send(&protocol.RoomNotice{
			Type:    protocol.TypeRoom,
			Message: fmt.Sprintf("Your join request to '%s' was approved!", roomName),
		})
		targetSess.Send(&protocol.RoomHistory{
			Type:    protocol.TypeRoomHistory,
			Room:    roomName,
			History: history,
		})
	}
	for _, peer := range peers {
		peer.Send(&protocol.RoomNotice{
			Type:    protocol.TypeRoom,
			Message: fmt.Sprintf("%s joined the room.", target),
		})
	}
}

// LeaveRoom handles the leave command for sess.
func (sm *SessionManager) LeaveRoom(sess *Session) {
	username := sess.Username()

	sm.mu.Lock()
	roomName, inRoom := sm.userRoom[username]
	if !inRoom {
		sm.mu.Unlock()
		sess.Send(&protocol.RoomNotice{
			Type:    protocol.TypeRoom,
			Message: "You are not in any room.",
		})
		return
	}
	sm.leaveRoomLocked(username, true)
	sm.mu.Unlock()

	sess.Send(&protocol.RoomNotice{
		Type:    protocol.TypeRoom,
		Message: fmt.Sprintf("Left room '%s'", roomName),
	})
}

// leaveRoomLocked removes username from its current room, deleting the
// room when the member set empties. When notify is set the remaining
// members are told who left. Caller holds sm.mu.
func (sm *SessionManager) leaveRoomLocked(username string, notify bool) {
	roomName, inRoom := sm.userRoom[username]
	if !inRoom {
		return
	}
	delete(sm.userRoom, username)

	room := sm.rooms[roomName]
	if room == nil {
		return
	}
	room.Members = remove(room.Members, username)

	if len(room.Members) == 0 {
		delete(sm.rooms, roomName)
		if sm.metrics != nil {
			sm.metrics.RecordActiveRooms(len(sm.rooms))
		}
		return
	}

	if notify {
		for _, peer := range sm.memberSessionsLocked(room, username) {
			peer.Send(&protocol.RoomNotice{
				Type:    protocol.TypeRoom,
				Message: fmt.Sprintf("%s left the room.", username),
			})
		}
	}
}

// BroadcastMessage delivers a chat message from sess. Members of a room
// broadcast into it (appending to history); a user mid-approval gets a
// wait notice; a user in no room at all falls back to a global
// broadcast.
func (sm *SessionManager) BroadcastMessage(sess *Session, text string) {
	username := sess.Username()

	sm.mu.Lock()
	roomName, inRoom := sm.userRoom[username]
	if !inRoom {
		if sm.pendingAnywhereLocked(username) {
			sm.mu.Unlock()
			sess.Send(&protocol.RoomNotice{
				Type:    protocol.TypeRoom,
				Message: "You must wait for admin approval before messaging in this room.",
			})
			return
		}
		sm.mu.Unlock()
		sm.BroadcastToAll(sess, &protocol.ChatMessage{
			Type:   protocol.TypeMessage,
			Sender: username,
			Text:   text,
		})
		return
	}

	room := sm.rooms[roomName]
	room.appendHistory(username, text)
	peers := sm.memberSessionsLocked(room, username)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.RecordBroadcast(len(peers))
	}
	for _, peer := range peers {
		peer.Send(&protocol.ChatMessage{
			Type:   protocol.TypeMessage,
			Sender: username,
			Text:   text,
		})
	}
}

// RoomNames returns the names of all live rooms.
func (sm *SessionManager) RoomNames() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	names := make([]string, 0, len(sm.rooms))
	for name := range sm.rooms {
		names = append(names, name)
	}
	return names
}

// WhoFor returns the member roster of the user's current room. An empty
// room name means the user is not in a room.
func (sm *SessionManager) WhoFor(username string) ([]string, string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	roomName, inRoom := sm.userRoom[username]
	room := sm.rooms[roomName]
	if !inRoom || room == nil {
		return []string{}, ""
	}
	members := make([]string, len(room.Members))
	copy(members, room.Members)
	return members, roomName
}

// NotifyRoom sends a response to every member of username's current
// room except username. No-op when the user is not in a room.
func (sm *SessionManager) NotifyRoom(username string, v any) {
	sm.mu.Lock()
	roomName, inRoom := sm.userRoom[username]
	room := sm.rooms[roomName]
	if !inRoom || room == nil {
		sm.mu.Unlock()
		return
	}
	peers := sm.memberSessionsLocked(room, username)
	sm.mu.Unlock()

	for _, peer := range peers {
		peer.Send(v)
	}
}

// memberSessionsLocked returns the live sessions of every room member
// except the one named. Caller holds sm.mu.
func (sm *SessionManager) memberSessionsLocked(room *Room, exclude string) []*Session {
	peers := make([]*Session, 0, len(room.Members))
	for _, member := range room.Members {
		if member == exclude {
			continue
		}
		if peer, ok := sm.users[member]; ok {
			peers = append(peers, peer)
		}
	}
	return peers
}

// pendingAnywhereLocked reports whether username has an outstanding join
// request in any room. Caller holds sm.mu.
func (sm *SessionManager) pendingAnywhereLocked(username string) bool {
	for _, room := range sm.rooms {
		if room.isPending(username) {
			return true
		}
	}
	return false
}
