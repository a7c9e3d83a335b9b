// Package kvstore implements the external key/value collaborator EOS
// scripts reach through `store`/`load`/`delete`/`exists` (spec sections
// 1 and 3): an ordered `(bucket, key) -> JSON value` store. It is
// grounded on the teacher's database/sql-based service actors
// (internal/svc/sqlite/sqlite_service.go, internal/svc/mysql), adapted
// here into a plain, non-actor Go type since the spec treats the store
// as an external collaborator rather than a scheduled actor.
package kvstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"eos/internal/object"
)

// Stats mirrors the Rust original's Db::stats() (common.rs): a key
// count and the on-disk byte size of the store.
type Stats struct {
	Keys      int64
	SizeBytes int64
}

// Store is the `(name, key) -> JSON` collaborator spec.md section 1
// treats as external. name is the script-chosen bucket a value is
// filed under (e.g. actor id, or a shared namespace).
type Store struct {
	db     *sql.DB
	driver string
	path   string
}

// Open connects to the backing database and ensures the kv table
// exists. driver is "sqlite3" or "mysql" (config key kv.driver);
// dataSource is a sqlite file path or a mysql DSN.
func Open(driver, dataSource string) (*Store, error) {
	db, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("kvstore: ping %s: %w", driver, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("kvstore: create table: %w", err)
	}
	return &Store{db: db, driver: driver, path: dataSource}, nil
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS eos_kv (
	bucket TEXT NOT NULL,
	k TEXT NOT NULL,
	v TEXT NOT NULL,
	PRIMARY KEY (bucket, k)
)`

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Store(ctx context.Context, bucket, key string, value object.Object) error {
	data, err := object.MarshalJSON(value)
	if err != nil {
		return fmt.Errorf("kvstore: marshal value: %w", err)
	}
	_, err = s.db.ExecContext(ctx, upsertSQL(s.driver), bucket, key, string(data))
	if err != nil {
		return fmt.Errorf("kvstore: store: %w", err)
	}
	return nil
}

func upsertSQL(driver string) string {
	if driver == "mysql" {
		return "INSERT INTO eos_kv (bucket, k, v) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)"
	}
	return "INSERT INTO eos_kv (bucket, k, v) VALUES (?, ?, ?) ON CONFLICT(bucket, k) DO UPDATE SET v = excluded.v"
}

func (s *Store) Load(ctx context.Context, bucket, key string) (object.Object, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT v FROM eos_kv WHERE bucket = ? AND k = ?", bucket, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: load: %w", err)
	}
	val, err := object.UnmarshalJSON([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: unmarshal value: %w", err)
	}
	return val, true, nil
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM eos_kv WHERE bucket = ? AND k = ?", bucket, key)
	if err != nil {
		return fmt.Errorf("kvstore: delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM eos_kv WHERE bucket = ? AND k = ?", bucket, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kvstore: exists: %w", err)
	}
	return true, nil
}

// Compact reclaims space from deleted/updated rows. On sqlite this is a
// VACUUM; on mysql it is a best-effort OPTIMIZE TABLE.
func (s *Store) Compact(ctx context.Context) error {
	stmt := "VACUUM"
	if s.driver == "mysql" {
		stmt = "OPTIMIZE TABLE eos_kv"
	}
	_, err := s.db.ExecContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("kvstore: compact: %w", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM eos_kv").Scan(&stats.Keys)
	if err != nil {
		return stats, fmt.Errorf("kvstore: stats: %w", err)
	}
	if s.driver == "sqlite3" {
		var pageCount, pageSize int64
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
			if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
				stats.SizeBytes = pageCount * pageSize
			}
		}
	}
	return stats, nil
}
