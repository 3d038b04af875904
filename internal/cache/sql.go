package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names a database/sql driver supported by SQLCache.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

const (
	// DefaultDirPermissions is used when creating the sqlite database directory.
	DefaultDirPermissions = 0755

	defaultMaxOpenConns    = 10
	defaultConnMaxLifetime = 5 * time.Minute
)

const schema = `
CREATE TABLE IF NOT EXISTS idempotency_keys (
	cache_key  TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_idempotency_keys_expires_at ON idempotency_keys (expires_at);
`

// SQLCache keeps markers in a relational table. Expiry is evaluated on read
// and expired rows are removed by Purge.
type SQLCache struct {
	db      *sql.DB
	dialect Dialect
	Now     func() time.Time
}

// OpenSQLCache opens dsn with the given dialect and creates the table.
// For sqlite the dsn is a file path whose directory is created if missing.
func OpenSQLCache(ctx context.Context, dialect Dialect, dsn string) (*SQLCache, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sql cache: database DSN not set")
	}
	switch dialect {
	case DialectSQLite:
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			return nil, fmt.Errorf("sql cache: create database directory %s: %w", dir, err)
		}
	case DialectPostgres:
	default:
		return nil, fmt.Errorf("sql cache: unsupported dialect %q", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("sql cache: open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One writer avoids SQLITE_BUSY on concurrent upserts.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sql cache: ping %s: %w", dialect, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sql cache: apply schema: %w", err)
	}
	slog.Debug("sql cache ready", "dialect", dialect)

	return &SQLCache{db: db, dialect: dialect, Now: time.Now}, nil
}

func (c *SQLCache) Close() error {
	return c.db.Close()
}

func (c *SQLCache) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.db.QueryRowContext(ctx,
		c.bind(`SELECT value FROM idempotency_keys WHERE cache_key = ? AND expires_at > ?`),
		key, c.nowMillis(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sql cache get %q: %w", key, err)
	}
	return value, true, nil
}

func (c *SQLCache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx,
		c.bind(`INSERT INTO idempotency_keys (cache_key, value, expires_at) VALUES (?, ?, ?)
ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`),
		key, value, c.expiry(ttl),
	)
	if err != nil {
		return fmt.Errorf("sql cache put %q: %w", key, err)
	}
	return nil
}

// Add inserts the row, or takes over an expired one, in a single statement.
func (c *SQLCache) Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		c.bind(`INSERT INTO idempotency_keys (cache_key, value, expires_at) VALUES (?, ?, ?)
ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
WHERE idempotency_keys.expires_at <= ?`),
		key, value, c.expiry(ttl), c.nowMillis(),
	)
	if err != nil {
		return false, fmt.Errorf("sql cache add %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sql cache add %q rows affected: %w", key, err)
	}
	return n > 0, nil
}

// Purge deletes expired rows and returns how many were removed.
func (c *SQLCache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		c.bind(`DELETE FROM idempotency_keys WHERE expires_at <= ?`), c.nowMillis())
	if err != nil {
		return 0, fmt.Errorf("sql cache purge: %w", err)
	}
	return res.RowsAffected()
}

func (c *SQLCache) nowMillis() int64 {
	if c.Now != nil {
		return c.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

func (c *SQLCache) expiry(ttl time.Duration) int64 {
	return c.nowMillis() + ttl.Milliseconds()
}

// bind rewrites ? placeholders to $n for postgres.
func (c *SQLCache) bind(query string) string {
	if c.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
