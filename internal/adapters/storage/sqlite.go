package storage

// sqlite.go — local implementation of ports.Store.
//
// Two tables model the remote store's data shapes:
//   `kv`    — string values with optional expiry (lazy eviction on read/write)
//   `zsets` — sorted-set members, ranked by (score ASC, member ASC) to match
//             Redis ordering, including its member tie-break
//
// Used for development without an Upstash database and for hermetic tests
// via ":memory:". Negative ZRange indices are normalized Redis-style before
// hitting SQL.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kosaiyno/iryspredict/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    expires_at INTEGER             -- unix ms, NULL = no expiry
);

CREATE TABLE IF NOT EXISTS zsets (
    key    TEXT NOT NULL,
    member TEXT NOT NULL,
    score  REAL NOT NULL,
    PRIMARY KEY (key, member)
);

CREATE INDEX IF NOT EXISTS idx_zsets_rank ON zsets(key, score, member);
`

// SQLite implements ports.Store on a local database file (pure Go, no CGo).
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the database at path and applies the schema.
// ":memory:" gives an ephemeral store.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLite: apply schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the value at key, or ports.ErrNotFound when absent or expired.
func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	var value string
	var expires sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key,
	).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ports.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage.Get %q: %w", key, err)
	}
	if expires.Valid && expires.Int64 <= s.now().UnixMilli() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return "", ports.ErrNotFound
	}
	return value, nil
}

// Set writes value at key, replacing any previous value. ttl <= 0 stores
// without expiry.
func (s *SQLite) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.expiry(ttl),
	)
	if err != nil {
		return fmt.Errorf("storage.Set %q: %w", key, err)
	}
	return nil
}

// SetNX writes only when key is absent (expired entries count as absent).
func (s *SQLite) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("storage.SetNX %q: begin: %w", key, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kv WHERE key = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		key, s.now().UnixMilli(),
	); err != nil {
		return false, fmt.Errorf("storage.SetNX %q: evict: %w", key, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, value, s.expiry(ttl),
	)
	if err != nil {
		return false, fmt.Errorf("storage.SetNX %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.SetNX %q: rows: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("storage.SetNX %q: commit: %w", key, err)
	}
	return n > 0, nil
}

// Del removes key, whether it holds a plain value or a sorted set.
// Missing keys are a no-op.
func (s *SQLite) Del(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Del %q: begin: %w", key, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage.Del %q: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM zsets WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage.Del %q: zset: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Del %q: commit: %w", key, err)
	}
	return nil
}

// IncrBy adds delta to the integer counter at key and returns the new total.
// A missing or expired counter starts at zero.
func (s *SQLite) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.IncrBy %q: begin: %w", key, err)
	}
	defer tx.Rollback()

	var current int64
	var value string
	var expires sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key,
	).Scan(&value, &expires)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	case err != nil:
		return 0, fmt.Errorf("storage.IncrBy %q: read: %w", key, err)
	case expires.Valid && expires.Int64 <= s.now().UnixMilli():
		current = 0
	default:
		current, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("storage.IncrBy %q: not an integer: %w", key, err)
		}
	}

	total := current + delta
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, NULL)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = NULL`,
		key, strconv.FormatInt(total, 10),
	); err != nil {
		return 0, fmt.Errorf("storage.IncrBy %q: write: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.IncrBy %q: commit: %w", key, err)
	}
	return total, nil
}

// ZAdd upserts members into the sorted set at key.
func (s *SQLite) ZAdd(ctx context.Context, key string, members ...ports.ScoredMember) error {
	if len(members) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.ZAdd %q: begin: %w", key, err)
	}
	defer tx.Rollback()

	for _, m := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO zsets (key, member, score) VALUES (?, ?, ?)
			 ON CONFLICT(key, member) DO UPDATE SET score = excluded.score`,
			key, m.Member, m.Score,
		); err != nil {
			return fmt.Errorf("storage.ZAdd %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.ZAdd %q: commit: %w", key, err)
	}
	return nil
}

// ZRange returns members ranked ascending by score in [start, stop],
// negative indices counting from the end as in Redis.
func (s *SQLite) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := s.ZRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Member
	}
	return out, nil
}

// ZRangeWithScores is ZRange with scores attached.
func (s *SQLite) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ports.ScoredMember, error) {
	card, err := s.zcard(ctx, key)
	if err != nil {
		return nil, err
	}
	offset, count, ok := normalizeRange(start, stop, card)
	if !ok {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT member, score FROM zsets WHERE key = ?
		 ORDER BY score ASC, member ASC LIMIT ? OFFSET ?`,
		key, count, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ZRange %q: %w", key, err)
	}
	defer rows.Close()

	var out []ports.ScoredMember
	for rows.Next() {
		var m ports.ScoredMember
		if err := rows.Scan(&m.Member, &m.Score); err != nil {
			return nil, fmt.Errorf("storage.ZRange %q: scan: %w", key, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ZRemRangeByRank removes members ranked in [start, stop].
func (s *SQLite) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	card, err := s.zcard(ctx, key)
	if err != nil {
		return err
	}
	offset, count, ok := normalizeRange(start, stop, card)
	if !ok {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM zsets WHERE (key, member) IN (
		    SELECT key, member FROM zsets WHERE key = ?
		    ORDER BY score ASC, member ASC LIMIT ? OFFSET ?)`,
		key, count, offset,
	)
	if err != nil {
		return fmt.Errorf("storage.ZRemRangeByRank %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) zcard(ctx context.Context, key string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM zsets WHERE key = ?`, key,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.zcard %q: %w", key, err)
	}
	return n, nil
}

func (s *SQLite) expiry(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return s.now().Add(ttl).UnixMilli()
}

// normalizeRange maps Redis [start, stop] (inclusive, negatives from the
// end) onto SQL LIMIT/OFFSET. ok is false for empty ranges.
func normalizeRange(start, stop, card int64) (offset, count int64, ok bool) {
	if card == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += card
	}
	if stop < 0 {
		stop += card
	}
	if start < 0 {
		start = 0
	}
	if stop >= card {
		stop = card - 1
	}
	if start > stop || start >= card {
		return 0, 0, false
	}
	return start, stop - start + 1, true
}
