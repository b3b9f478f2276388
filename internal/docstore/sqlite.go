package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SQLite stores documents in the documents table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite creates a store on an opened, migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Create inserts data as a new document and returns its id.
func (s *SQLite) Create(ctx context.Context, collection string, data interface{}) (string, error) {
	obj, err := encodeObject(data)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}

	id := newID()
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)",
		collection, id, string(raw),
	); err != nil {
		return "", fmt.Errorf("inserting document: %w", err)
	}

	return id, nil
}

// Get returns one document. canvass import uses it to tell new records from
// replaced ones.
func (s *SQLite) Get(ctx context.Context, collection, id string) (*Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?", collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}

	return &Document{ID: id, Data: json.RawMessage(data)}, nil
}

// Update merges fields into an existing document.
func (s *SQLite) Update(ctx context.Context, collection, id string, fields map[string]interface{}) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (also failed to roll back: %v)", err, rbErr)
			}
		}
	}()

	var data string
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?", collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("querying document %s: %w", id, err)
	}

	merged, err := merge(json.RawMessage(data), fields)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE documents SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND id = ?",
		string(merged), collection, id,
	); err != nil {
		return fmt.Errorf("updating document: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}
	return nil
}

// Delete removes a document.
func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?", collection, id,
	)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}

	return nil
}

// List returns every document in a collection, oldest first.
func (s *SQLite) List(ctx context.Context, collection string) (docs []Document, err error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM documents WHERE collection = ? ORDER BY created_at, rowid", collection,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, Document{ID: id, Data: json.RawMessage(data)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// Put stores data under a caller-chosen id, replacing any existing document.
// canvass import uses it to restore exported records under their own ids.
func (s *SQLite) Put(ctx context.Context, collection, id string, data interface{}) error {
	obj, err := encodeObject(data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		collection, id, string(raw),
	); err != nil {
		return fmt.Errorf("putting document: %w", err)
	}
	return nil
}
