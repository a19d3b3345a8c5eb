package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var (
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username already exists")
)

// Store persists user credentials in SQLite. Passwords are stored as
// bcrypt hashes, never in the clear.
type Store struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username   TEXT PRIMARY KEY,
	password   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Open opens (creating if needed) the credential database at path.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Credential lookups are short and serialized per-request; a single
	// connection avoids SQLITE_BUSY entirely.
	conn.SetMaxOpenConns(1)

	// WAL mode for durability without blocking readers
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Register creates a credential record for username. Returns
// ErrUsernameTaken if the username is already registered.
func (s *Store) Register(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.conn.Exec(
		"INSERT INTO users (username, password, created_at) VALUES (?, ?, ?)",
		username, string(hash), time.Now().UnixMilli(),
	)
	if err != nil {
		if s.Exists(username) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Validate reports whether the username/password pair matches a stored
// credential record.
func (s *Store) Validate(username, password string) bool {
	var hash string
	err := s.conn.QueryRow(
		"SELECT password FROM users WHERE username = ?", username,
	).Scan(&hash)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Exists reports whether the username is registered.
func (s *Store) Exists(username string) bool {
	var n int
	err := s.conn.QueryRow(
		"SELECT COUNT(*) FROM users WHERE username = ?", username,
	).Scan(&n)
	return err == nil && n > 0
}
