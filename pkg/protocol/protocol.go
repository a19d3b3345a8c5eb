package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request and response type tags carried in the "type" field of every
// JSON line on the wire.
const (
	TypeAuth           = "AUTH"
	TypeCommand        = "COMMAND"
	TypeMessage        = "MESSAGE"
	TypePrivateMessage = "PRIVATE_MESSAGE"
	TypeFileUpload     = "FILE_UPLOAD"
	TypeFileDownload   = "FILE_DOWNLOAD"
	TypeSendFile       = "SEND_FILE"

	TypeUsers            = "USERS"
	TypeWho              = "WHO"
	TypeRooms            = "ROOMS"
	TypeRoom             = "ROOM"
	TypeRoomHistory      = "ROOM_HISTORY"
	TypeRoomJoinRequest  = "ROOM_JOIN_REQUEST"
	TypeFileUploadAck    = "FILE_UPLOAD_ACK"
	TypeFileUploadFail   = "FILE_UPLOAD_FAIL"
	TypeFileDownloadFail = "FILE_DOWNLOAD_FAIL"
	TypeReceiveFile      = "RECEIVE_FILE"
	TypeError            = "ERROR"
)

// AUTH actions
const (
	ActionRegister = "register"
	ActionLogin    = "login"
)

// COMMAND verbs
const (
	CmdUsers   = "users"
	CmdWho     = "who"
	CmdRooms   = "rooms"
	CmdJoin    = "join"
	CmdLeave   = "leave"
	CmdApprove = "approve"
	CmdReject  = "reject"
)

var (
	// ErrMalformedRequest indicates a line that is not a valid JSON object
	// or is missing required fields for its type.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnknownType indicates an unrecognized "type" tag.
	ErrUnknownType = errors.New("unknown request type")
)

// AuthRequest asks to register a new account or log in to an existing one.
type AuthRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// CommandRequest carries one of the slash commands (users, who, rooms,
// join, leave, approve, reject).
type CommandRequest struct {
	Command string   `json:"command"`
	Room    string   `json:"room,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// MessageRequest broadcasts text to the sender's current room.
type MessageRequest struct {
	Text string `json:"text"`
}

// PrivateMessageRequest sends text to a single online user.
type PrivateMessageRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// FileUploadRequest stores a file in the shared upload store.
type FileUploadRequest struct {
	Filename string `json:"filename"`
	Data     string `json:"data"` // base64
}

// FileDownloadRequest fetches a file from the shared upload store.
type FileDownloadRequest struct {
	Filename string `json:"filename"`
}

// SendFileRequest relays a file directly to another online user.
type SendFileRequest struct {
	Recipient string `json:"recipient"`
	Filename  string `json:"filename"`
	Data      string `json:"data"` // base64
}

// DecodeRequest parses one wire line into its typed request. It returns
// ErrMalformedRequest for invalid JSON or field-incomplete payloads and
// ErrUnknownType for an unrecognized tag.
func DecodeRequest(line []byte) (any, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	switch env.Type {
	case TypeAuth:
		req := &AuthRequest{}
		if err := json.Unmarshal(line, req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		if req.Action != ActionRegister && req.Action != ActionLogin {
			return nil, fmt.Errorf("%w: bad auth action %q", ErrMalformedRequest, req.Action)
		}
		if req.Username == "" || req.Password == "" {
			return nil, fmt.Errorf("%w: auth requires username and password", ErrMalformedRequest)
		}
		return req, nil

	case TypeCommand:
		req := &CommandRequest{}
		if err := json.Unmarshal(line, req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		switch req.Command {
		case CmdUsers, CmdWho, CmdRooms, CmdJoin, CmdLeave, CmdApprove, CmdReject:
			return req, nil
		default:
			return nil, fmt.Errorf("%w: bad command %q", ErrMalformedRequest, req.Command)
		}

	case TypeMessage:
		req := &MessageRequest{}
		if err := json.Unmarshal(line, req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		return req, nil

	case TypePrivateMessage:
		req := &PrivateMessageRequest{}
		if err := json.Unmarshal(line, req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		if req.Recipient == "" {
			return nil, fmt.Errorf("%w: private message requires recipient", ErrMalformedRequest)
		}
		return req, nil

	case TypeFileUpload:
		req := &FileUploadRequest{}
		if err := json.Unmarshal(line, req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		if req.Filename == "" {
			return nil, fmt.Errorf("%w: upload requires filename", ErrMalformedRequest)
		}
		return req, nil

	case TypeFileDownload:
		req := &FileDownloadRequest{}
		if err := json.Unmarshal(line, req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		if req.Filename == "" {
			return nil, fmt.Errorf("%w: download requires filename", ErrMalformedRequest)
		}
		return req, nil

	case TypeSendFile:
		req := &SendFileRequest{}
		if err := json.Unmarshal(line, req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		if req.Recipient == "" || req.Filename == "" {
			return nil, fmt.Errorf("%w: send file requires recipient and filename", ErrMalformedRequest)
		}
		return req, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// AuthResponse reports the outcome of a register or login attempt.
type AuthResponse struct {
	Type    string `json:"type"`
	Status  string `json:"status"` // "success" or "fail"
	Message string `json:"message"`
}

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// ChatMessage is a broadcast message delivered to room members (or, for
// server notices, sent with Sender set to "Server").
type ChatMessage struct {
	Type   string `json:"type"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// PrivateMessage is a direct message between two users.
type PrivateMessage struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// UserList answers the "users" command with everyone online.
type UserList struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// WhoList answers the "who" command with the sender's room roster.
type WhoList struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
	Room  string   `json:"room"`
}

// RoomList answers the "rooms" command with every active room name.
type RoomList struct {
	Type  string   `json:"type"`
	Rooms []string `json:"rooms"`
}

// RoomNotice is an informational room-lifecycle message (joined, left,
// awaiting approval, approved, rejected).
type RoomNotice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// HistoryEntry is one retained room message.
type HistoryEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// RoomHistory replays the retained messages of a room, oldest first.
type RoomHistory struct {
	Type    string         `json:"type"`
	Room    string         `json:"room"`
	History []HistoryEntry `json:"history"`
}

// RoomJoinRequest notifies a room admin that a user wants in.
type RoomJoinRequest struct {
	Type     string `json:"type"`
	Room     string `json:"room"`
	Username string `json:"username"`
}

// FileUploadAck confirms a successful upload to the uploader.
type FileUploadAck struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
}

// FileUploadFail reports a failed upload to the uploader.
type FileUploadFail struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// FileDownload carries a requested file back to the downloader.
type FileDownload struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Data     string `json:"data"` // base64
}

// FileDownloadFail reports a missing file to the downloader.
type FileDownloadFail struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// ReceiveFile delivers a directly-sent file to its recipient.
type ReceiveFile struct {
	Type     string `json:"type"`
	Sender   string `json:"sender"`
	Filename string `json:"filename"`
	Data     string `json:"data"` // base64
}

// ErrorNotice is a generic non-fatal error reply (parse failures,
// unauthenticated requests, rate limiting).
type ErrorNotice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EncodeResponse marshals a response and appends the line terminator.
func EncodeResponse(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return append(b, '\n'), nil
}
