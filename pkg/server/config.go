package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server ServerSection `toml:"server"`
	Limits LimitsSection `toml:"limits"`
	Files  FilesSection  `toml:"files"`
}

type ServerSection struct {
	TCPPort      int    `toml:"tcp_port"`
	HTTPPort     int    `toml:"http_port"`
	DatabasePath string `toml:"database_path"`
}

type LimitsSection struct {
	MessageRateLimit float64 `toml:"message_rate_limit"` // messages per second per session
	MessageBurst     int     `toml:"message_burst"`
	MaxLineBytes     int     `toml:"max_line_bytes"`
	SendQueueDepth   int     `toml:"send_queue_depth"`
}

type FilesSection struct {
	UploadDir    string `toml:"upload_dir"`
	MaxFileBytes int64  `toml:"max_file_bytes"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			TCPPort:      5000,
			HTTPPort:     5001,
			DatabasePath: "~/.cli-chat/users.db",
		},
		Limits: LimitsSection{
			MessageRateLimit: 5,
			MessageBurst:     10,
			MaxLineBytes:     16 * 1024 * 1024, // base64-inflated file payloads
			SendQueueDepth:   256,
		},
		Files: FilesSection{
			UploadDir:    "~/.cli-chat/uploads",
			MaxFileBytes: 8 * 1024 * 1024,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not found
func LoadConfig(path string) (TOMLConfig, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	if _, err := os.Stat(expanded); os.IsNotExist(err) {
		// File doesn't exist, create default config
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(expanded, config); err != nil {
			// If we can't write, just return defaults without error
			// (might be a permissions issue, but we can still run)
			return config, nil
		}
		return config, nil
	}

	var config TOMLConfig
	if _, err := toml.DecodeFile(expanded, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config TOMLConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// GetDatabasePath returns the credential database path with ~ expanded
func (c *TOMLConfig) GetDatabasePath() (string, error) {
	return expandPath(c.Server.DatabasePath)
}

// GetUploadDir returns the upload directory with ~ expanded
func (c *TOMLConfig) GetUploadDir() (string, error) {
	return expandPath(c.Files.UploadDir)
}

// ToServerConfig converts the TOML file shape into the runtime config
func (c *TOMLConfig) ToServerConfig() ServerConfig {
	return ServerConfig{
		TCPPort:          c.Server.TCPPort,
		HTTPPort:         c.Server.HTTPPort,
		MessageRateLimit: c.Limits.MessageRateLimit,
		MessageBurst:     c.Limits.MessageBurst,
		MaxLineBytes:     c.Limits.MaxLineBytes,
		SendQueueDepth:   c.Limits.SendQueueDepth,
		MaxFileBytes:     c.Files.MaxFileBytes,
	}
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}
	return path, nil
}
