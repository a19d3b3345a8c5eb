package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequestValid(t *testing.T) {
	tests := []struct {
		name string
		line string
		want any
	}{
		{
			name: "auth register",
			line: `{"type":"AUTH","action":"register","username":"alice","password":"pw1"}`,
			want: &AuthRequest{Action: "register", Username: "alice", Password: "pw1"},
		},
		{
			name: "auth login",
			line: `{"type":"AUTH","action":"login","username":"bob","password":"pw2"}`,
			want: &AuthRequest{Action: "login", Username: "bob", Password: "pw2"},
		},
		{
			name: "command without room",
			line: `{"type":"COMMAND","command":"users"}`,
			want: &CommandRequest{Command: "users"},
		},
		{
			name: "command with room",
			line: `{"type":"COMMAND","command":"join","room":"lobby"}`,
			want: &CommandRequest{Command: "join", Room: "lobby"},
		},
		{
			name: "command with args",
			line: `{"type":"COMMAND","command":"approve","args":["bob"]}`,
			want: &CommandRequest{Command: "approve", Args: []string{"bob"}},
		},
		{
			name: "message",
			line: `{"type":"MESSAGE","text":"hello"}`,
			want: &MessageRequest{Text: "hello"},
		},
		{
			name: "private message",
			line: `{"type":"PRIVATE_MESSAGE","recipient":"bob","text":"psst"}`,
			want: &PrivateMessageRequest{Recipient: "bob", Text: "psst"},
		},
		{
			name: "file upload",
			line: `{"type":"FILE_UPLOAD","filename":"a.txt","data":"aGk="}`,
			want: &FileUploadRequest{Filename: "a.txt", Data: "aGk="},
		},
		{
			name: "file download",
			line: `{"type":"FILE_DOWNLOAD","filename":"a.txt"}`,
			want: &FileDownloadRequest{Filename: "a.txt"},
		},
		{
			name: "send file",
			line: `{"type":"SEND_FILE","recipient":"bob","filename":"a.txt","data":"aGk="}`,
			want: &SendFileRequest{Recipient: "bob", Filename: "a.txt", Data: "aGk="},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRequest([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
	}{
		{"not json", `{broken`, ErrMalformedRequest},
		{"json array", `[1,2,3]`, ErrMalformedRequest},
		{"unknown type", `{"type":"TELEPORT"}`, ErrUnknownType},
		{"missing type", `{"text":"hi"}`, ErrUnknownType},
		{"auth without action", `{"type":"AUTH","username":"a","password":"b"}`, ErrMalformedRequest},
		{"auth bad action", `{"type":"AUTH","action":"delete","username":"a","password":"b"}`, ErrMalformedRequest},
		{"auth missing password", `{"type":"AUTH","action":"login","username":"a"}`, ErrMalformedRequest},
		{"unknown command", `{"type":"COMMAND","command":"fly"}`, ErrMalformedRequest},
		{"private message without recipient", `{"type":"PRIVATE_MESSAGE","text":"hi"}`, ErrMalformedRequest},
		{"upload without filename", `{"type":"FILE_UPLOAD","data":"aGk="}`, ErrMalformedRequest},
		{"download without filename", `{"type":"FILE_DOWNLOAD"}`, ErrMalformedRequest},
		{"send file without recipient", `{"type":"SEND_FILE","filename":"a.txt","data":"aGk="}`, ErrMalformedRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.line))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEncodeResponse(t *testing.T) {
	line, err := EncodeResponse(&AuthResponse{
		Type:    TypeAuth,
		Status:  StatusSuccess,
		Message: "Login successful",
	})
	require.NoError(t, err)

	assert.Equal(t, byte('\n'), line[len(line)-1], "line must be newline-terminated")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(line, &decoded))
	assert.Equal(t, "AUTH", decoded["type"])
	assert.Equal(t, "success", decoded["status"])
}

func TestResponseTypeTags(t *testing.T) {
	// Each response shape carries the right wire tag
	responses := []struct {
		resp any
		tag  string
	}{
		{&ChatMessage{Type: TypeMessage, Sender: "alice", Text: "hi"}, "MESSAGE"},
		{&PrivateMessage{Type: TypePrivateMessage, Sender: "a", Recipient: "b", Text: "x"}, "PRIVATE_MESSAGE"},
		{&UserList{Type: TypeUsers, Users: []string{"a"}}, "USERS"},
		{&WhoList{Type: TypeWho, Users: []string{"a"}, Room: "r"}, "WHO"},
		{&RoomList{Type: TypeRooms, Rooms: []string{"r"}}, "ROOMS"},
		{&RoomNotice{Type: TypeRoom, Message: "m"}, "ROOM"},
		{&RoomHistory{Type: TypeRoomHistory, Room: "r"}, "ROOM_HISTORY"},
		{&RoomJoinRequest{Type: TypeRoomJoinRequest, Room: "r", Username: "u"}, "ROOM_JOIN_REQUEST"},
		{&FileUploadAck{Type: TypeFileUploadAck, Filename: "f"}, "FILE_UPLOAD_ACK"},
		{&FileUploadFail{Type: TypeFileUploadFail, Filename: "f", Message: "m"}, "FILE_UPLOAD_FAIL"},
		{&FileDownload{Type: TypeFileDownload, Filename: "f", Data: "d"}, "FILE_DOWNLOAD"},
		{&FileDownloadFail{Type: TypeFileDownloadFail, Filename: "f", Message: "m"}, "FILE_DOWNLOAD_FAIL"},
		{&ReceiveFile{Type: TypeReceiveFile, Sender: "s", Filename: "f", Data: "d"}, "RECEIVE_FILE"},
		{&ErrorNotice{Type: TypeError, Message: "m"}, "ERROR"},
	}

	for _, tt := range responses {
		line, err := EncodeResponse(tt.resp)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(line, &decoded))
		assert.Equal(t, tt.tag, decoded["type"])
	}
}

func TestRoomHistoryMarshalsEntries(t *testing.T) {
	line, err := EncodeResponse(&RoomHistory{
		Type: TypeRoomHistory,
		Room: "lobby",
		History: []HistoryEntry{
			{Sender: "alice", Text: "first"},
			{Sender: "bob", Text: "second"},
		},
	})
	require.NoError(t, err)

	var decoded RoomHistory
	require.NoError(t, json.Unmarshal(line, &decoded))
	require.Len(t, decoded.History, 2)
	assert.Equal(t, "alice", decoded.History[0].Sender)
	assert.Equal(t, "second", decoded.History[1].Text)
}
