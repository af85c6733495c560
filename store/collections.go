/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/kakaroto/game"
)

var ErrCollectionNotFound = errors.New("collection not found")

// PutCollection stores c, creating it when c.ID is zero, and returns its id.
func (d *DB) PutCollection(ctx context.Context, c game.Collection) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, fmt.Errorf("invalid collection %q: %w", c.Title, err)
	}

	cards, err := json.Marshal(c.Cards)
	if err != nil {
		return 0, fmt.Errorf("failed to encode cards: %w", err)
	}

	now := time.Now().UTC()

	if c.ID == 0 {
		var id int64
		err := d.db.QueryRowContext(ctx, d.rebind(`
			INSERT INTO kakaroto_question_collection (title, description, cards, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?) RETURNING id`),
			c.Title, nullable(c.Description), string(cards), now, now,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to create collection: %w", err)
		}

		return id, nil
	}

	res, err := d.db.ExecContext(ctx, d.rebind(`
		UPDATE kakaroto_question_collection
		SET title = ?, description = ?, cards = ?, updated_at = ?
		WHERE id = ?`),
		c.Title, nullable(c.Description), string(cards), now, c.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update collection: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to update collection: %w", err)
	}
	if n == 0 {
		return 0, ErrCollectionNotFound
	}

	return c.ID, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (game.Collection, error) {
	var (
		c           game.Collection
		description sql.NullString
		cards       string
	)

	if err := row.Scan(&c.ID, &c.Title, &description, &cards); err != nil {
		return game.Collection{}, err
	}
	c.Description = description.String

	if err := json.Unmarshal([]byte(cards), &c.Cards); err != nil {
		return game.Collection{}, fmt.Errorf("collection %d has malformed cards: %w", c.ID, err)
	}

	return c, nil
}

func (d *DB) GetCollection(ctx context.Context, id int64) (game.Collection, error) {
	c, err := scanCollection(d.db.QueryRowContext(ctx, d.rebind(`
		SELECT id, title, description, cards FROM kakaroto_question_collection WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return game.Collection{}, ErrCollectionNotFound
	}

	return c, err
}

// ListCollections returns up to limit collections whose title or
// description contains query, ignoring case.
func (d *DB) ListCollections(ctx context.Context, query string, limit int) ([]game.Collection, error) {
	pattern := "%" + strings.ToLower(query) + "%"

	rows, err := d.db.QueryContext(ctx, d.rebind(`
		SELECT id, title, description, cards FROM kakaroto_question_collection
		WHERE LOWER(title) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?
		ORDER BY id
		LIMIT ?`),
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := []game.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}

	return collections, rows.Err()
}

func (d *DB) DeleteCollection(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, d.rebind(`DELETE FROM kakaroto_question_collection WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCollectionNotFound
	}

	return nil
}
