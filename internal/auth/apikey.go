// Package auth provides API key authentication for the canvass server.
// Each key belongs to a volunteer, whose name is the default visitor on
// visits recorded with that key.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	apiKeyBytes  = 32 // 256-bit keys
	apiKeyPrefix = "ck_"
)

var (
	// ErrKeyNotFound is returned when deleting an unknown key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey is returned when a presented key matches no stored key.
	ErrInvalidKey = errors.New("invalid API key")
)

// APIKey is the stored representation of an API key (no raw key).
type APIKey struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Volunteer  string     `json:"volunteer"`
	KeyPrefix  string     `json:"key_prefix"` // first 8 chars for identification
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyStore manages API keys in SQLite.
type APIKeyStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewAPIKeyStore creates an API key store.
func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db, now: time.Now}
}

// Create generates a key for volunteer. The raw key is returned once and
// only its hash is stored.
func (s *APIKeyStore) Create(ctx context.Context, name, volunteer string) (string, *APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, fmt.Errorf("key name is required")
	}

	raw, err := generateAPIKey()
	if err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}

	prefix := raw[:8]
	now := s.now().UTC()

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO api_keys (name, volunteer, key_prefix, key_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		name, strings.TrimSpace(volunteer), prefix, hashAPIKey(raw), now,
	)
	if err != nil {
		return "", nil, fmt.Errorf("storing key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("getting key id: %w", err)
	}

	return raw, &APIKey{
		ID:        id,
		Name:      name,
		Volunteer: strings.TrimSpace(volunteer),
		KeyPrefix: prefix,
		CreatedAt: now,
	}, nil
}

// List returns all API keys, newest first.
func (s *APIKeyStore) List(ctx context.Context) (keys []APIKey, err error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, volunteer, key_prefix, created_at, last_used_at FROM api_keys ORDER BY created_at DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.Volunteer, &k.KeyPrefix, &k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

// Delete removes an API key by ID.
func (s *APIKeyStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("key %d: %w", id, ErrKeyNotFound)
	}

	return nil
}

// Validate checks a raw key against stored hashes and records its use.
// It returns ErrInvalidKey when no key matches.
func (s *APIKeyStore) Validate(ctx context.Context, rawKey string) (*APIKey, error) {
	if !strings.HasPrefix(rawKey, apiKeyPrefix) {
		return nil, ErrInvalidKey
	}

	hash := hashAPIKey(rawKey)

	var k APIKey
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, volunteer, key_prefix, created_at FROM api_keys WHERE key_hash = ?", hash,
	).Scan(&k.ID, &k.Name, &k.Volunteer, &k.KeyPrefix, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("validating key: %w", err)
	}

	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used_at = ? WHERE id = ?", now, k.ID,
	); err != nil {
		return nil, fmt.Errorf("recording key use: %w", err)
	}
	k.LastUsedAt = &now

	return &k, nil
}

func generateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}

func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
