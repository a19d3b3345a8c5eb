package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/AdhikowshikJ/cli-chat/pkg/protocol"
	"github.com/charmbracelet/lipgloss"
)

var (
	serverStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	senderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	privateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")) // magenta
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
)

func main() {
	addr := flag.String("addr", "localhost:5000", "Server address")
	downloadDir := flag.String("downloads", "downloads", "Directory for received files")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	fmt.Println(okStyle.Render("Connected to " + *addr))
	fmt.Println("Commands: /register /login /join /leave /approve /reject /users /who /rooms /msg /upload /download /sendfile /exit")

	go receiveLoop(conn, *downloadDir)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" {
			return
		}
		req, err := buildRequest(line)
		if err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			continue
		}
		if err := writeRequest(conn, req); err != nil {
			log.Fatalf("Connection lost: %v", err)
		}
	}
}

// buildRequest turns one input line into a wire request. A line that
// does not start with a slash is a room message.
func buildRequest(line string) (any, error) {
	if !strings.HasPrefix(line, "/") {
		return &protocol.MessageRequest{Text: line}, nil
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/register", "/login":
		if len(args) != 2 {
			return nil, fmt.Errorf("Usage: %s <username> <password>", cmd)
		}
		action := protocol.ActionLogin
		if cmd == "/register" {
			action = protocol.ActionRegister
		}
		return map[string]string{
			"type":     protocol.TypeAuth,
			"action":   action,
			"username": args[0],
			"password": args[1],
		}, nil

	case "/users", "/who", "/rooms", "/leave":
		return map[string]string{
			"type":    protocol.TypeCommand,
			"command": cmd[1:],
		}, nil

	case "/join":
		if len(args) != 1 {
			return nil, fmt.Errorf("Usage: /join <room>")
		}
		return map[string]string{
			"type":    protocol.TypeCommand,
			"command": protocol.CmdJoin,
			"room":    args[0],
		}, nil

	case "/approve", "/reject":
		if len(args) != 1 {
			return nil, fmt.Errorf("Usage: %s <username>", cmd)
		}
		return map[string]any{
			"type":    protocol.TypeCommand,
			"command": cmd[1:],
			"args":    []string{args[0]},
		}, nil

	case "/msg":
		if len(args) < 2 {
			return nil, fmt.Errorf("Usage: /msg <username> <text>")
		}
		return &protocol.PrivateMessageRequest{
			Recipient: args[0],
			Text:      strings.Join(args[1:], " "),
		}, nil

	case "/upload":
		if len(args) != 1 {
			return nil, fmt.Errorf("Usage: /upload <path>")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("Cannot read %s: %v", args[0], err)
		}
		return &protocol.FileUploadRequest{
			Filename: filepath.Base(args[0]),
			Data:     base64.StdEncoding.EncodeToString(data),
		}, nil

	case "/download":
		if len(args) != 1 {
			return nil, fmt.Errorf("Usage: /download <filename>")
		}
		return &protocol.FileDownloadRequest{Filename: args[0]}, nil

	case "/sendfile":
		if len(args) != 2 {
			return nil, fmt.Errorf("Usage: /sendfile <username> <path>")
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return nil, fmt.Errorf("Cannot read %s: %v", args[1], err)
		}
		return &protocol.SendFileRequest{
			Recipient: args[0],
			Filename:  filepath.Base(args[1]),
			Data:      base64.StdEncoding.EncodeToString(data),
		}, nil

	default:
		return nil, fmt.Errorf("Unknown command %s", cmd)
	}
}

func writeRequest(conn net.Conn, req any) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(b, '\n'))
	return err
}

// receiveLoop prints every server event until the connection drops.
func receiveLoop(conn net.Conn, downloadDir string) {
	dec := protocol.NewDecoder(conn, 0)
	for {
		line, err := dec.Next()
		if err != nil {
			fmt.Println(errorStyle.Render("Disconnected from server"))
			os.Exit(0)
		}
		printEvent(line, downloadDir)
	}
}

func printEvent(line []byte, downloadDir string) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &env); err != nil {
		fmt.Println(string(line))
		return
	}

	switch env.Type {
	case protocol.TypeAuth:
		var msg protocol.AuthResponse
		json.Unmarshal(line, &msg)
		if msg.Status == protocol.StatusSuccess {
			fmt.Println(okStyle.Render(msg.Message))
		} else {
			fmt.Println(errorStyle.Render(msg.Message))
		}

	case protocol.TypeMessage:
		var msg protocol.ChatMessage
		json.Unmarshal(line, &msg)
		if msg.Sender == "Server" {
			fmt.Println(serverStyle.Render(msg.Text))
		} else {
			fmt.Printf("%s %s\n", senderStyle.Render(msg.Sender+":"), msg.Text)
		}

	case protocol.TypePrivateMessage:
		var msg protocol.PrivateMessage
		json.Unmarshal(line, &msg)
		fmt.Println(privateStyle.Render(fmt.Sprintf("[%s -> %s] %s", msg.Sender, msg.Recipient, msg.Text)))

	case protocol.TypeUsers:
		var msg protocol.UserList
		json.Unmarshal(line, &msg)
		fmt.Println(serverStyle.Render("Online: " + strings.Join(msg.Users, ", ")))

	case protocol.TypeWho:
		var msg protocol.WhoList
		json.Unmarshal(line, &msg)
		if msg.Room == "" {
			fmt.Println(serverStyle.Render("You are not in any room."))
		} else {
			fmt.Println(serverStyle.Render(fmt.Sprintf("In '%s': %s", msg.Room, strings.Join(msg.Users, ", "))))
		}

	case protocol.TypeRooms:
		var msg protocol.RoomList
		json.Unmarshal(line, &msg)
		fmt.Println(serverStyle.Render("Rooms: " + strings.Join(msg.Rooms, ", ")))

	case protocol.TypeRoom:
		var msg protocol.RoomNotice
		json.Unmarshal(line, &msg)
		fmt.Println(serverStyle.Render(msg.Message))

	case protocol.TypeRoomHistory:
		var msg protocol.RoomHistory
		json.Unmarshal(line, &msg)
		fmt.Println(serverStyle.Render(fmt.Sprintf("--- History for '%s' ---", msg.Room)))
		for _, entry := range msg.History {
			fmt.Printf("%s %s\n", senderStyle.Render(entry.Sender+":"), entry.Text)
		}

	case protocol.TypeRoomJoinRequest:
		var msg protocol.RoomJoinRequest
		json.Unmarshal(line, &msg)
		fmt.Println(serverStyle.Render(fmt.Sprintf(
			"%s wants to join '%s' (/approve %s or /reject %s)",
			msg.Username, msg.Room, msg.Username, msg.Username)))

	case protocol.TypeFileUploadAck:
		var msg protocol.FileUploadAck
		json.Unmarshal(line, &msg)
		fmt.Println(okStyle.Render(fmt.Sprintf("Uploaded '%s'", msg.Filename)))

	case protocol.TypeFileUploadFail:
		var msg protocol.FileUploadFail
		json.Unmarshal(line, &msg)
		fmt.Println(errorStyle.Render(fmt.Sprintf("Upload of '%s' failed: %s", msg.Filename, msg.Message)))

	case protocol.TypeFileDownload:
		var msg protocol.FileDownload
		json.Unmarshal(line, &msg)
		saveFile(downloadDir, msg.Filename, msg.Data)

	case protocol.TypeFileDownloadFail:
		var msg protocol.FileDownloadFail
		json.Unmarshal(line, &msg)
		fmt.Println(errorStyle.Render("Download failed: " + msg.Message))

	case protocol.TypeReceiveFile:
		var msg protocol.ReceiveFile
		json.Unmarshal(line, &msg)
		fmt.Println(serverStyle.Render(fmt.Sprintf("%s sent you '%s'", msg.Sender, msg.Filename)))
		saveFile(downloadDir, msg.Filename, msg.Data)

	case protocol.TypeError:
		var msg protocol.ErrorNotice
		json.Unmarshal(line, &msg)
		fmt.Println(errorStyle.Render(msg.Message))

	default:
		fmt.Println(string(line))
	}
}

func saveFile(dir, filename, data string) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		fmt.Println(errorStyle.Render("Corrupt file payload for " + filename))
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Println(errorStyle.Render("Cannot create " + dir))
		return
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, raw, 0644); err != nil {
		fmt.Println(errorStyle.Render("Cannot save " + path))
		return
	}
	fmt.Println(okStyle.Render("Saved " + path))
}
