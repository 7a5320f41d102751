package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"rcfeed/models"
)

const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS messages (
	    id INTEGER PRIMARY KEY AUTOINCREMENT,
	    type TEXT NOT NULL,
	    raw TEXT NOT NULL,
	    error TEXT,
	    document TEXT NOT NULL,
	    created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_type ON messages(type);
	CREATE INDEX IF NOT EXISTS idx_messages_error ON messages(error);
	`

var duckdbSchema = []string{
	`CREATE SEQUENCE IF NOT EXISTS messages_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS messages (
	    id BIGINT PRIMARY KEY DEFAULT nextval('messages_id_seq'),
	    type VARCHAR NOT NULL,
	    raw VARCHAR NOT NULL,
	    error VARCHAR,
	    document VARCHAR NOT NULL,
	    created_at VARCHAR NOT NULL
	)`,
}

// StoredMessage is a serialized message as kept in the database.
type StoredMessage struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Document  json.RawMessage `json:"message"`
}

// Filter selects stored messages.
type Filter struct {
	Type        string
	ErroredOnly bool
	Limit       int
	Offset      int
}

// DefaultFilter returns a Filter with default values.
func DefaultFilter() Filter {
	return Filter{Limit: 50}
}

// Store persists serialized messages.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and makes sure the schema exists.
// An empty path opens an in-memory database.
func Open(driver, path string) (*Store, error) {
	dsn, err := dataSource(driver, path)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if path == "" {
		// Every connection to an in-memory database sees its own database.
		conn.SetMaxOpenConns(1)
	}

	s := &Store{db: conn, driver: driver}
	if err := s.initializeSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func dataSource(driver, path string) (string, error) {
	switch driver {
	case DriverSQLite:
		if path == "" {
			path = ":memory:"
		}
		return path + "?_journal_mode=WAL&_synchronous=OFF&_cache_size=-100000&_busy_timeout=5000", nil
	case DriverDuckDB:
		return path, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (s *Store) initializeSchema() error {
	statements := []string{sqliteSchema}
	if s.driver == DriverDuckDB {
		statements = duckdbSchema
	}
	for _, q := range statements {
		if _, err := s.db.Exec(q); err != nil {
			log.Printf("Failed to create messages table: %v", err)
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	log.Println("Messages table created or already exists")
	return nil
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Save stores the serialized form of msg and returns its row ID.
func (s *Store) Save(ctx context.Context, msg *models.Message) (int64, error) {
	doc, err := msg.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to serialize message: %w", err)
	}

	var errCode sql.NullString
	if code, ok := msg.Err(); ok {
		errCode = sql.NullString{String: code, Valid: true}
	}
	created := time.Now().UTC().Format(time.RFC3339Nano)

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO messages (type, raw, error, document, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		msg.Type(), msg.Raw(), errCode, string(doc), created,
	).Scan(&id)
	if err != nil {
		log.Printf("Failed to store message in database: %v", err)
		return 0, fmt.Errorf("failed to store message: %w", err)
	}
	return id, nil
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if f.ErroredOnly {
		conds = append(conds, "error IS NOT NULL")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns stored messages matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]StoredMessage, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultFilter().Limit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where, args := f.where()
	query := "SELECT id, type, error, document, created_at FROM messages" + where +
		" ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	out := make([]StoredMessage, 0, f.Limit)
	for rows.Next() {
		var (
			m        StoredMessage
			errCode  sql.NullString
			document string
			created  string
		)
		if err := rows.Scan(&m.ID, &m.Type, &errCode, &document, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Error = errCode.String
		m.Document = json.RawMessage(document)
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			m.CreatedAt = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of stored messages matching f.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// Get returns a stored message by ID and the message rebuilt from it.
func (s *Store) Get(ctx context.Context, id int64) (*models.Message, error) {
	var document string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM messages WHERE id = ?", id).Scan(&document)
	if err != nil {
		return nil, fmt.Errorf("failed to load message %d: %w", id, err)
	}
	return models.Deserialize([]byte(document))
}
