package geocode

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Geocoder is the lookup contract shared by Client and Cache.
type Geocoder interface {
	Forward(ctx context.Context, address string) (Point, error)
	Reverse(ctx context.Context, lat, lon float64) (Address, error)
}

// Cache stores forward matches in SQLite. Misses are not cached, so an
// address that failed once is retried on the next lookup.
type Cache struct {
	db     *sql.DB
	next   Geocoder
	logger *slog.Logger
}

// NewCache wraps next with a cache backed by the geocode_cache table.
// Cache read and write failures are logged to logger, or slog.Default()
// when it is nil, and fall through to next.
func NewCache(db *sql.DB, next Geocoder, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{db: db, next: next, logger: logger}
}

// CacheKey returns the SHA-256 hex of the normalized address.
func CacheKey(address string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(address)), " ")
	return fmt.Sprintf("%x", sha256.Sum256([]byte(normalized)))
}

// Forward returns a cached match or asks the wrapped geocoder.
func (c *Cache) Forward(ctx context.Context, address string) (Point, error) {
	key := CacheKey(address)

	var p Point
	err := c.db.QueryRowContext(ctx,
		"SELECT lat, lon FROM geocode_cache WHERE address_hash = ?", key,
	).Scan(&p.Lat, &p.Lon)
	switch {
	case err == nil:
		c.logger.DebugContext(ctx, "geocode cache hit", "key", key[:12])
		return p, nil
	case !errors.Is(err, sql.ErrNoRows):
		c.logger.WarnContext(ctx, "geocode cache read failed", "error", err)
	}

	p, err = c.next.Forward(ctx, address)
	if err != nil {
		return Point{}, err
	}

	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (address_hash, address, lat, lon) VALUES (?, ?, ?, ?)
		 ON CONFLICT(address_hash) DO UPDATE SET lat = excluded.lat, lon = excluded.lon, cached_at = CURRENT_TIMESTAMP`,
		key, address, p.Lat, p.Lon,
	); err != nil {
		c.logger.WarnContext(ctx, "geocode cache write failed", "error", err)
	}

	return p, nil
}

// Reverse is not cached.
func (c *Cache) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	return c.next.Reverse(ctx, lat, lon)
}
