package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	mderrors "github.com/sweetpotato0/mountdoom/errors"
)

// PostgresStore implements DocumentStore using PostgreSQL with one JSONB
// documents table shared across collections.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig returns default PostgreSQL configuration
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:    "localhost",
		Port:    5432,
		User:    "postgres",
		DBName:  "mountdoom",
		SSLMode: "disable",
	}
}

// NewPostgresStore creates a new PostgreSQL-based document store
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		key        TEXT NOT NULL,
		doc        JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, key)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_created_at
		ON documents (collection, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_documents_doc
		ON documents USING GIN (doc);`

	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Put upserts a document by key.
func (s *PostgresStore) Put(ctx context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	const query = `
	INSERT INTO documents (collection, key, doc)
	VALUES ($1, $2, $3)
	ON CONFLICT (collection, key) DO UPDATE SET doc = EXCLUDED.doc`

	if _, err := s.db.ExecContext(ctx, query, collection, key, raw); err != nil {
		return fmt.Errorf("failed to put document into %s: %w", collection, err)
	}
	return nil
}

// Get loads a document by key.
func (s *PostgresStore) Get(ctx context.Context, collection, key string, out any) error {
	const query = `SELECT doc FROM documents WHERE collection = $1 AND key = $2`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, collection, key).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return mderrors.ErrNotFound
		}
		return fmt.Errorf("failed to get document from %s: %w", collection, err)
	}
	return json.Unmarshal(raw, out)
}

// QueryExactMatch decodes the most recently written document containing all
// filter fields, ties broken by latest created_at.
func (s *PostgresStore) QueryExactMatch(ctx context.Context, collection string, filter map[string]any, out any) error {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("failed to encode filter: %w", err)
	}

	const query = `
	SELECT doc FROM documents
	WHERE collection = $1 AND doc @> $2::jsonb
	ORDER BY created_at DESC
	LIMIT 1`

	var raw []byte
	err = s.db.QueryRowContext(ctx, query, collection, filterJSON).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return mderrors.ErrNotFound
		}
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return json.Unmarshal(raw, out)
}

// Page decodes an ordered page of documents into out.
func (s *PostgresStore) Page(ctx context.Context, collection string, opts PageOptions, out any) error {
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}

	var orderExpr string
	if orderBy == "created_at" {
		orderExpr = "created_at"
	} else {
		orderExpr = "doc->>'" + orderBy + "'"
	}

	query := fmt.Sprintf(
		`SELECT doc FROM documents WHERE collection = $1 ORDER BY %s %s OFFSET $2`,
		orderExpr, direction)
	args := []any{collection, opts.Offset}
	if opts.Limit > 0 {
		query += " LIMIT $3"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to page %s: %w", collection, err)
	}
	defer rows.Close()

	var raws []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("failed to scan document: %w", err)
		}
		raws = append(raws, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read page of %s: %w", collection, err)
	}

	encoded, err := json.Marshal(raws)
	if err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}
	return json.Unmarshal(encoded, out)
}

// Delete removes a document by key.
func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND key = $2`

	result, err := s.db.ExecContext(ctx, query, collection, key)
	if err != nil {
		return fmt.Errorf("failed to delete document from %s: %w", collection, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return mderrors.ErrNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close(ctx context.Context) error {
	return s.db.Close()
}

// Ping checks if the PostgreSQL connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
