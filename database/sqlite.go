package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the request journal
type DB struct {
	conn *sql.DB
}

// LogEntry is one journaled relay call. Backend fields are empty when the
// request never reached Ollama.
type LogEntry struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	Model          string    `json:"model"`
	Prompt         string    `json:"prompt"`
	Response       string    `json:"response"`
	StatusCode     int       `json:"status_code"`
	LatencyMs      int64     `json:"latency_ms"`
	Error          string    `json:"error"`
	ClientIP       string    `json:"client_ip"`
	BackendURL     string    `json:"backend_url"`
	BackendRequest string    `json:"backend_request"`
}

// New opens the journal at path
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db, err := NewWithConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// NewWithConn uses conn for the journal, creating the table when missing
func NewWithConn(conn *sql.DB) (*DB, error) {
	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS request (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		model TEXT,
		prompt TEXT,
		response TEXT,
		status_code INTEGER,
		latency_ms INTEGER,
		error TEXT,
		client_ip TEXT,
		backend_url TEXT,
		backend_request TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON request(timestamp);
	CREATE INDEX IF NOT EXISTS idx_endpoint ON request(endpoint);
	CREATE INDEX IF NOT EXISTS idx_model ON request(model);
`

const insertEntry = `
	INSERT INTO request (timestamp, request_id, endpoint, method, model, prompt, response,
		status_code, latency_ms, error, client_ip, backend_url, backend_request)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (db *DB) initSchema() error {
	_, err := db.conn.Exec(schema)
	return err
}

// Log appends entry to the journal
func (db *DB) Log(entry LogEntry) error {
	_, err := db.conn.Exec(
		insertEntry,
		entry.Timestamp,
		entry.RequestID,
		entry.Endpoint,
		entry.Method,
		entry.Model,
		entry.Prompt,
		entry.Response,
		entry.StatusCode,
		entry.LatencyMs,
		entry.Error,
		entry.ClientIP,
		entry.BackendURL,
		entry.BackendRequest,
	)
	if err != nil {
		return fmt.Errorf("failed to journal %s %s: %w", entry.Method, entry.Endpoint, err)
	}
	return nil
}

// Close releases the connection
func (db *DB) Close() error {
	return db.conn.Close()
}
