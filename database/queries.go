package database

import (
	"database/sql"
	"errors"
	"fmt"
)

const selectColumns = `id, timestamp, request_id, endpoint, method, model, prompt, response, status_code, latency_ms, error, client_ip, backend_url, backend_request`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (LogEntry, error) {
	var entry LogEntry
	var model, prompt, response, errMsg, clientIP, backendURL, backendRequest sql.NullString
	var statusCode, latency sql.NullInt64

	err := row.Scan(
		&entry.ID,
		&entry.Timestamp,
		&entry.RequestID,
		&entry.Endpoint,
		&entry.Method,
		&model,
		&prompt,
		&response,
		&statusCode,
		&latency,
		&errMsg,
		&clientIP,
		&backendURL,
		&backendRequest,
	)
	if err != nil {
		return entry, err
	}

	entry.Model = model.String
	entry.Prompt = prompt.String
	entry.Response = response.String
	entry.StatusCode = int(statusCode.Int64)
	entry.LatencyMs = latency.Int64
	entry.Error = errMsg.String
	entry.ClientIP = clientIP.String
	entry.BackendURL = backendURL.String
	entry.BackendRequest = backendRequest.String
	return entry, nil
}

// GetRecentEntries returns the most recent log entries with pagination
func (db *DB) GetRecentEntries(limit, offset int) ([]LogEntry, error) {
	query := `SELECT ` + selectColumns + `
		FROM request
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// GetEntryByID returns a single log entry by ID, or nil if there is none
func (db *DB) GetEntryByID(id int64) (*LogEntry, error) {
	query := `SELECT ` + selectColumns + `
		FROM request
		WHERE id = ?
	`

	entry, err := scanEntry(db.conn.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}

	return &entry, nil
}

// GetTotalCount returns the total number of log entries
func (db *DB) GetTotalCount() (int64, error) {
	var count int64
	err := db.conn.QueryRow("SELECT COUNT(*) FROM request").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// Prune deletes everything but the newest keep entries and returns how many
// rows were removed
func (db *DB) Prune(keep int) (int64, error) {
	query := `
		DELETE FROM request
		WHERE id NOT IN (
			SELECT id FROM request
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		)
	`

	res, err := db.conn.Exec(query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned entries: %w", err)
	}
	return n, nil
}
