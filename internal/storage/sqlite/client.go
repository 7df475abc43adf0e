package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/lawmate/billpipe/pkg/logger"
)

const driverName = "sqlite3_billpipe"

var ErrNotFound = errors.New("not found")

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("string_to_vector", stringToVector, true); err != nil {
				return err
			}
			return conn.RegisterFunc("vector_to_string", vectorToString, true)
		},
	})
}

type Client struct {
	db        *sql.DB
	vectorDim int
}

// NewClient opens the database at dbPath, creating its directory when
// needed. vectorDim fixes the byte length accepted in bills.embedding.
func NewClient(dbPath string, vectorDim int) (*Client, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")

	db, err := sql.Open(driverName, fmt.Sprintf("file:%s?%s", dbPath, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer, one process: a single connection keeps every statement on
	// the same SQLite handle.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, vectorDim: vectorDim}, nil
}

// NewClientFromDB wraps an existing handle. Used with sqlmock in tests.
func NewClientFromDB(db *sql.DB, vectorDim int) *Client {
	return &Client{db: db, vectorDim: vectorDim}
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS bill_proposers (
		proposer_id INTEGER PRIMARY KEY AUTOINCREMENT,
		proposer_name TEXT NOT NULL UNIQUE,
		bth TEXT,
		job TEXT,
		poly TEXT,
		orig TEXT,
		cmits TEXT,
		mem_title TEXT
	);

	CREATE TABLE IF NOT EXISTS bills (
		bill_id INTEGER PRIMARY KEY AUTOINCREMENT,
		api_id TEXT NOT NULL UNIQUE,
		bill_number INTEGER NOT NULL,
		bill_title TEXT NOT NULL,
		bill_proposer TEXT NOT NULL,
		proposer_id INTEGER NOT NULL,
		committee TEXT NOT NULL,
		bill_status TEXT NOT NULL,
		bill_date TEXT NOT NULL,
		detail TEXT,
		summary TEXT,
		prediction TEXT,
		term TEXT,
		embedding BLOB CHECK (embedding IS NULL OR length(embedding) = %d),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (proposer_id) REFERENCES bill_proposers(proposer_id)
	);
	CREATE INDEX IF NOT EXISTS idx_bills_number ON bills(bill_number);
	CREATE INDEX IF NOT EXISTS idx_bills_proposer ON bills(proposer_id);

	CREATE TABLE IF NOT EXISTS bill_statuses (
		bill_id INTEGER PRIMARY KEY,
		proposer_id INTEGER NOT NULL,
		bill_count INTEGER NOT NULL DEFAULT 0,
		"yes" INTEGER NOT NULL DEFAULT 0,
		"no" INTEGER NOT NULL DEFAULT 0,
		bookmark_count INTEGER NOT NULL DEFAULT 0,
		link TEXT NOT NULL,
		FOREIGN KEY (bill_id) REFERENCES bills(bill_id) ON DELETE CASCADE
	);
	`, c.vectorDim*4)

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized", zap.Int("vector_dim", c.vectorDim))
	return nil
}
