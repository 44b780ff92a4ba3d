package activity

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Sink on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	config Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string        `yaml:"path"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.Path == ":memory:" {
		// Every connection to :memory: is a separate database.
		cfg.MaxOpenConns = 1
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{config: cfg}, nil
}

// Open creates, initializes and migrates a store in one call.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Init opens the database connection with WAL mode and a busy timeout.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", s.config.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.config.MaxOpenConns)
	db.SetMaxIdleConns(s.config.MaxOpenConns)
	db.SetConnMaxLifetime(s.config.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Record stores an entry, assigning an id and timestamp when missing.
func (s *SQLiteStore) Record(ctx context.Context, entry *Entry) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	params, err := encodeJSON(entry.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	result, err := encodeJSON(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	userCtx, err := encodeJSON(entry.UserContext)
	if err != nil {
		return fmt.Errorf("failed to encode user context: %w", err)
	}

	query := `
		INSERT INTO activity (id, action_type, description, mode, success, parameters, result, user_context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActionType,
		entry.Description,
		entry.Mode,
		entry.Success,
		params,
		result,
		userCtx,
		entry.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// List returns entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var actionType *string
	if filter.ActionType != "" {
		actionType = &filter.ActionType
	}

	query := `
		SELECT id, action_type, description, mode, success, parameters, result, user_context, created_at
		FROM activity
		WHERE (? IS NULL OR action_type = ?)
		ORDER BY seq DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, actionType, actionType, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var (
			entry                   Entry
			params, result, userCtx sql.NullString
			createdAt               int64
		)
		err := rows.Scan(
			&entry.ID,
			&entry.ActionType,
			&entry.Description,
			&entry.Mode,
			&entry.Success,
			&params,
			&result,
			&userCtx,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if entry.Parameters, err = decodeJSON(params); err != nil {
			return nil, fmt.Errorf("failed to decode parameters of %s: %w", entry.ID, err)
		}
		if entry.Result, err = decodeJSON(result); err != nil {
			return nil, fmt.Errorf("failed to decode result of %s: %w", entry.ID, err)
		}
		if entry.UserContext, err = decodeJSON(userCtx); err != nil {
			return nil, fmt.Errorf("failed to decode user context of %s: %w", entry.ID, err)
		}
		entry.Timestamp = time.UnixMilli(createdAt).UTC()
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries, optionally for one action type.
func (s *SQLiteStore) Count(ctx context.Context, actionType string) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	var arg *string
	if actionType != "" {
		arg = &actionType
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity WHERE (? IS NULL OR action_type = ?)`,
		arg, arg,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count activity: %w", err)
	}
	return n, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

func encodeJSON(v map[string]any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeJSON(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}
