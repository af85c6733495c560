/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Seednode/kakaroto/game"
)

const (
	SQLite   = "sqlite"
	Postgres = "postgres"

	timeout = 5 * time.Second
)

// DB stores sessions and collections in SQLite or PostgreSQL.
type DB struct {
	db     *sql.DB
	driver string
}

func Open(driver, dsn string) (*DB, error) {
	if driver != SQLite && driver != Postgres {
		return nil, fmt.Errorf("unsupported database type %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == SQLite {
		// a single writer avoids SQLITE_BUSY between the hubs
		conn.SetMaxOpenConns(1)
	}

	d := &DB{db: conn, driver: driver}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := d.createSchema(ctx); err != nil {
		conn.Close()

		return nil, err
	}

	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) createSchema(ctx context.Context) error {
	statements := sqliteSchema
	if d.driver == Postgres {
		statements = postgresSchema
	}

	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS kakaroto_kv (
		storage_key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS kakaroto_question_collection (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		language TEXT NOT NULL DEFAULT 'en',
		cards TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS question_collection_title_idx ON kakaroto_question_collection(title)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS kakaroto_kv (
		storage_key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS kakaroto_question_collection (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		language TEXT NOT NULL DEFAULT 'en',
		cards TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS question_collection_title_idx ON kakaroto_question_collection(title)`,
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (d *DB) rebind(query string) string {
	if d.driver != Postgres {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}

	return sb.String()
}

// Load implements game.Storage.
func (d *DB) Load(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var value []byte
	err := d.db.QueryRowContext(ctx,
		d.rebind(`SELECT value FROM kakaroto_kv WHERE storage_key = ?`), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}

	return value, nil
}

// Save implements game.Storage.
func (d *DB) Save(key string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, d.rebind(`
		INSERT INTO kakaroto_kv (storage_key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (storage_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		key, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}

	return nil
}
