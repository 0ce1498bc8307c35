package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/storage/models"
	"github.com/nl2api/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ask_history (
		id TEXT PRIMARY KEY,
		user_query TEXT NOT NULL,
		detected_protocol TEXT NOT NULL,
		confidence REAL,
		reasoning TEXT,
		generated_query TEXT,
		generated_request TEXT,
		message TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ask_created ON ask_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_ask_protocol ON ask_history(detected_protocol);

	CREATE TABLE IF NOT EXISTS ask_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ask_id TEXT NOT NULL,
		name TEXT NOT NULL,
		protocol_type TEXT NOT NULL,
		preview TEXT,
		score REAL,
		FOREIGN KEY (ask_id) REFERENCES ask_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_sources_ask ON ask_sources(ask_id);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		ask_id TEXT NOT NULL,
		helpful INTEGER NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (ask_id) REFERENCES ask_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_ask ON feedback(ask_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertAskRecord(record *models.AskRecord) error {
	query := `
		INSERT INTO ask_history (id, user_query, detected_protocol, confidence, reasoning,
			generated_query, generated_request, message, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserQuery,
		record.DetectedProtocol,
		record.Confidence,
		record.Reasoning,
		record.GeneratedQuery,
		record.GeneratedRequest,
		record.Message,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert ask record: %w", err)
	}

	logger.Debug("Ask recorded",
		zap.String("ask_id", record.ID),
		zap.String("protocol", record.DetectedProtocol),
	)

	return nil
}

func (c *Client) InsertContextSource(source *models.ContextSource) error {
	query := `INSERT INTO ask_sources (ask_id, name, protocol_type, preview, score) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		source.AskID,
		source.Name,
		source.ProtocolType,
		source.Preview,
		source.Score,
	)

	if err != nil {
		return fmt.Errorf("failed to insert context source: %w", err)
	}

	return nil
}

func (c *Client) GetAskHistory(limit int) ([]models.AskRecord, error) {
	query := `
		SELECT id, user_query, detected_protocol, confidence, reasoning,
			generated_query, generated_request, message, latency_ms, created_at
		FROM ask_history
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ask history: %w", err)
	}
	defer rows.Close()

	var records []models.AskRecord
	for rows.Next() {
		var r models.AskRecord
		var createdAt int64

		err := rows.Scan(
			&r.ID,
			&r.UserQuery,
			&r.DetectedProtocol,
			&r.Confidence,
			&r.Reasoning,
			&r.GeneratedQuery,
			&r.GeneratedRequest,
			&r.Message,
			&r.LatencyMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}

func (c *Client) GetAskRecord(id string) (*models.AskRecord, error) {
	query := `
		SELECT id, user_query, detected_protocol, confidence, reasoning,
			generated_query, generated_request, message, latency_ms, created_at
		FROM ask_history
		WHERE id = ?
	`

	var r models.AskRecord
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(
		&r.ID,
		&r.UserQuery,
		&r.DetectedProtocol,
		&r.Confidence,
		&r.Reasoning,
		&r.GeneratedQuery,
		&r.GeneratedRequest,
		&r.Message,
		&r.LatencyMS,
		&createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get ask record: %w", err)
	}

	r.CreatedAt = time.Unix(createdAt, 0)

	return &r, nil
}

func (c *Client) GetContextSources(askID string) ([]models.ContextSource, error) {
	query := `SELECT ask_id, name, protocol_type, preview, score FROM ask_sources WHERE ask_id = ?`

	rows, err := c.db.Query(query, askID)
	if err != nil {
		return nil, fmt.Errorf("failed to get context sources: %w", err)
	}
	defer rows.Close()

	var sources []models.ContextSource
	for rows.Next() {
		var s models.ContextSource
		err := rows.Scan(&s.AskID, &s.Name, &s.ProtocolType, &s.Preview, &s.Score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sources = append(sources, s)
	}

	return sources, nil
}

func (c *Client) StoreFeedback(feedback *models.Feedback) error {
	query := `INSERT INTO feedback (id, ask_id, helpful, comment, created_at) VALUES (?, ?, ?, ?, ?)`

	helpful := 0
	if feedback.Helpful {
		helpful = 1
	}

	_, err := c.db.Exec(
		query,
		feedback.ID,
		feedback.AskID,
		helpful,
		feedback.Comment,
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.String("ask_id", feedback.AskID),
		zap.Bool("helpful", feedback.Helpful),
	)

	return nil
}
