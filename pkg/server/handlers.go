package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/AdhikowshikJ/cli-chat/pkg/auth"
	"github.com/AdhikowshikJ/cli-chat/pkg/protocol"
)

// handleAuth handles AUTH register/login requests.
func (s *Server) handleAuth(sess *Session, req *protocol.AuthRequest) {
	if sess.Username() != "" {
		sess.Send(&protocol.AuthResponse{
			Type:    protocol.TypeAuth,
			Status:  protocol.StatusFail,
			Message: "Already authenticated",
		})
		return
	}

	switch req.Action {
	case protocol.ActionRegister:
		err := s.store.Register(req.Username, req.Password)
		if errors.Is(err, auth.ErrUsernameTaken) {
			sess.Send(&protocol.AuthResponse{
				Type:    protocol.TypeAuth,
				Status:  protocol.StatusFail,
				Message: "Username already exists",
			})
			return
		}
		if err != nil {
			errorLog.Printf("Session %d: register failed: %v", sess.ID, err)
			sess.Send(&protocol.AuthResponse{
				Type:    protocol.TypeAuth,
				Status:  protocol.StatusFail,
				Message: "Registration failed",
			})
			return
		}
		// Registration does not log the user in; a login must follow.
		sess.Send(&protocol.AuthResponse{
			Type:    protocol.TypeAuth,
			Status:  protocol.StatusSuccess,
			Message: "Registration successful",
		})

	case protocol.ActionLogin:
		if !s.store.Validate(req.Username, req.Password) {
			sess.Send(&protocol.AuthResponse{
				Type:    protocol.TypeAuth,
				Status:  protocol.StatusFail,
				Message: "Invalid username or password",
			})
			return
		}
		if !s.sessions.Login(sess, req.Username) {
			sess.Send(&protocol.AuthResponse{
				Type:    protocol.TypeAuth,
				Status:  protocol.StatusFail,
				Message: "User already logged in",
			})
			return
		}
		log.Printf("Session %d logged in as %s", sess.ID, req.Username)
		sess.Send(&protocol.AuthResponse{
			Type:    protocol.TypeAuth,
			Status:  protocol.StatusSuccess,
			Message: "Login successful",
		})
	}
}

// handleCommand routes the slash commands.
func (s *Server) handleCommand(sess *Session, req *protocol.CommandRequest) {
	switch req.Command {
	case protocol.CmdUsers:
		sess.Send(&protocol.UserList{
			Type:  protocol.TypeUsers,
			Users: s.sessions.OnlineUsers(),
		})

	case protocol.CmdWho:
		users, room := s.sessions.WhoFor(sess.Username())
		sess.Send(&protocol.WhoList{
			Type:  protocol.TypeWho,
			Users: users,
			Room:  room,
		})

	case protocol.CmdRooms:
		sess.Send(&protocol.RoomList{
			Type:  protocol.TypeRooms,
			Rooms: s.sessions.RoomNames(),
		})

	case protocol.CmdJoin:
		if req.Room == "" {
			sess.Send(&protocol.RoomNotice{
				Type:    protocol.TypeRoom,
				Message: "Usage: /join <room>",
			})
			return
		}
		s.sessions.JoinRoom(sess, req.Room)

	case protocol.CmdLeave:
		s.sessions.LeaveRoom(sess)

	case protocol.CmdApprove, protocol.CmdReject:
		target := ""
		if len(req.Args) > 0 {
			target = req.Args[0]
		}
		if req.Command == protocol.CmdApprove {
			s.sessions.Approve(sess, target)
		} else {
			s.sessions.Reject(sess, target)
		}
	}
}

// handleMessage handles a room (or fallback global) broadcast.
func (s *Server) handleMessage(sess *Session, req *protocol.MessageRequest) {
	if !s.allowMessage(sess) {
		return
	}
	s.sessions.BroadcastMessage(sess, req.Text)
}

// handlePrivateMessage relays a direct message and echoes it back to
// the sender, or reports an offline recipient.
func (s *Server) handlePrivateMessage(sess *Session, req *protocol.PrivateMessageRequest) {
	if !s.allowMessage(sess) {
		return
	}
	sender := sess.Username()

	recipient, online := s.sessions.Lookup(req.Recipient)
	if !online {
		sess.Send(&protocol.PrivateMessage{
			Type:      protocol.TypePrivateMessage,
			Sender:    "Server",
			Recipient: sender,
			Text:      fmt.Sprintf("User '%s' is not online.", req.Recipient),
		})
		return
	}

	msg := &protocol.PrivateMessage{
		Type:      protocol.TypePrivateMessage,
		Sender:    sender,
		Recipient: req.Recipient,
		Text:      req.Text,
	}
	recipient.Send(msg)
	sess.Send(msg)
}

// handleFileUpload persists a room upload and notifies the uploader's
// room. Requires the uploader to currently be in a room.
func (s *Server) handleFileUpload(sess *Session, req *protocol.FileUploadRequest) {
	username := sess.Username()

	_, room := s.sessions.WhoFor(username)
	if room == "" {
		sess.Send(&protocol.FileUploadFail{
			Type:     protocol.TypeFileUploadFail,
			Filename: req.Filename,
			Message:  "Join a room before uploading files",
		})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		sess.Send(&protocol.FileUploadFail{
			Type:     protocol.TypeFileUploadFail,
			Filename: req.Filename,
			Message:  "Invalid base64 payload",
		})
		return
	}

	if err := s.files.Save(req.Filename, data); err != nil {
		// Local, non-fatal failure: report to the uploader only.
		sess.Send(&protocol.FileUploadFail{
			Type:     protocol.TypeFileUploadFail,
			Filename: req.Filename,
			Message:  err.Error(),
		})
		return
	}

	if s.metrics != nil {
		s.metrics.RecordFileBytes("upload", len(data))
	}
	sess.Send(&protocol.FileUploadAck{
		Type:     protocol.TypeFileUploadAck,
		Filename: req.Filename,
	})
	s.sessions.NotifyRoom(username, &protocol.ChatMessage{
		Type:   protocol.TypeMessage,
		Sender: "Server",
		Text:   fmt.Sprintf("File '%s' uploaded by %s", req.Filename, username),
	})
}

// handleFileDownload serves a file from the shared upload store. Any
// authenticated user may fetch any uploaded filename.
func (s *Server) handleFileDownload(sess *Session, req *protocol.FileDownloadRequest) {
	data, err := s.files.Load(req.Filename)
	if err != nil {
		sess.Send(&protocol.FileDownloadFail{
			Type:     protocol.TypeFileDownloadFail,
			Filename: req.Filename,
			Message:  "File not found",
		})
		return
	}

	if s.metrics != nil {
		s.metrics.RecordFileBytes("download", len(data))
	}
	sess.Send(&protocol.FileDownload{
		Type:     protocol.TypeFileDownload,
		Filename: req.Filename,
		Data:     base64.StdEncoding.EncodeToString(data),
	})
}

// handleSendFile relays a file directly to an online user. Nothing is
// written to disk and there is no queuing for offline recipients.
func (s *Server) handleSendFile(sess *Session, req *protocol.SendFileRequest) {
	sender := sess.Username()

	recipient, online := s.sessions.Lookup(req.Recipient)
	if !online {
		sess.Send(&protocol.ChatMessage{
			Type:   protocol.TypeMessage,
			Sender: "Server",
			Text:   fmt.Sprintf("User '%s' is not online.", req.Recipient),
		})
		return
	}

	if max := s.files.MaxBytes(); max > 0 {
		decoded := int64(base64.StdEncoding.DecodedLen(len(req.Data)))
		if decoded > max {
			sess.Send(&protocol.ChatMessage{
				Type:   protocol.TypeMessage,
				Sender: "Server",
				Text:   fmt.Sprintf("File '%s' exceeds the maximum transfer size", req.Filename),
			})
			return
		}
	}

	recipient.SetPendingDownload(&PendingDownload{
		FromUser: sender,
		Filename: req.Filename,
	})
	recipient.Send(&protocol.ReceiveFile{
		Type:     protocol.TypeReceiveFile,
		Sender:   sender,
		Filename: req.Filename,
		Data:     req.Data,
	})
	if s.metrics != nil {
		s.metrics.RecordFileBytes("relay", base64.StdEncoding.DecodedLen(len(req.Data)))
	}
	sess.Send(&protocol.ChatMessage{
		Type:   protocol.TypeMessage,
		Sender: "Server",
		Text:   fmt.Sprintf("File '%s' delivered to %s", req.Filename, req.Recipient),
	})
}
