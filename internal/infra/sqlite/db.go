// Package sqlite provides the SQLite-backed warning journal.
// Uses WAL mode so the CLI can read history while the guard is writing.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/idlelock/idlelock/internal/domain"
)

// FileName is the journal database inside the data directory.
const FileName = "journal.db"

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the journal at dir/journal.db.
// Enables WAL mode and a 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS warnings (
			id           TEXT PRIMARY KEY,
			opened_at    INTEGER NOT NULL,
			closed_at    INTEGER NOT NULL,
			reason       TEXT NOT NULL,
			grace_secs   INTEGER NOT NULL,
			remaining    INTEGER NOT NULL,
			idle_secs    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_warnings_opened ON warnings(opened_at)`,
		`CREATE INDEX IF NOT EXISTS idx_warnings_reason ON warnings(reason)`,

		`CREATE TABLE IF NOT EXISTS transitions (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			kind  TEXT NOT NULL,
			at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions(at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// ─── Warnings ───────────────────────────────────────────────────────────────

// InsertWarning stores one closed warning session. Re-inserting an ID
// replaces the earlier row.
func (d *DB) InsertWarning(rec domain.WarningRecord) error {
	_, err := d.db.Exec(
		`INSERT INTO warnings (id, opened_at, closed_at, reason, grace_secs, remaining, idle_secs)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			closed_at=excluded.closed_at, reason=excluded.reason, remaining=excluded.remaining`,
		rec.ID, rec.OpenedAt.UnixMilli(), rec.ClosedAt.UnixMilli(), string(rec.Reason),
		rec.GraceSecs, rec.Remaining, rec.IdleSeconds,
	)
	return err
}

// ListWarnings returns the most recent warning sessions, newest first.
// A limit of zero or less returns everything.
func (d *DB) ListWarnings(limit int) ([]domain.WarningRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.Query(
		`SELECT id, opened_at, closed_at, reason, grace_secs, remaining, idle_secs
		 FROM warnings ORDER BY opened_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WarningRecord
	for rows.Next() {
		var rec domain.WarningRecord
		var opened, closed int64
		var reason string
		if err := rows.Scan(&rec.ID, &opened, &closed, &reason,
			&rec.GraceSecs, &rec.Remaining, &rec.IdleSeconds); err != nil {
			return nil, err
		}
		rec.OpenedAt = time.UnixMilli(opened)
		rec.ClosedAt = time.UnixMilli(closed)
		rec.Reason = domain.CloseReason(reason)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountWarnings returns how many warnings ended for each reason.
func (d *DB) CountWarnings() (map[domain.CloseReason]int, error) {
	rows, err := d.db.Query(`SELECT reason, COUNT(*) FROM warnings GROUP BY reason`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.CloseReason]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		counts[domain.CloseReason(reason)] = n
	}
	return counts, rows.Err()
}

// ─── Transitions ────────────────────────────────────────────────────────────

// InsertTransition stores a session lock or unlock.
func (d *DB) InsertTransition(rec domain.TransitionRecord) error {
	_, err := d.db.Exec(
		`INSERT INTO transitions (kind, at) VALUES (?, ?)`,
		rec.Kind.String(), rec.At.UnixMilli(),
	)
	return err
}

// ListTransitions returns the most recent session transitions, newest first.
func (d *DB) ListTransitions(limit int) ([]domain.TransitionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.Query(
		`SELECT kind, at FROM transitions ORDER BY at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TransitionRecord
	for rows.Next() {
		var kind string
		var at int64
		if err := rows.Scan(&kind, &at); err != nil {
			return nil, err
		}
		k, ok := domain.ParseEventKind(kind)
		if !ok {
			continue
		}
		out = append(out, domain.TransitionRecord{Kind: k, At: time.UnixMilli(at)})
	}
	return out, rows.Err()
}

// ─── Retention ──────────────────────────────────────────────────────────────

// Prune deletes journal entries older than before and returns how many
// rows were removed.
func (d *DB) Prune(before time.Time) (int64, error) {
	cutoff := before.UnixMilli()

	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for _, q := range []string{
		`DELETE FROM warnings WHERE closed_at < ?`,
		`DELETE FROM transitions WHERE at < ?`,
	} {
		res, err := tx.Exec(q, cutoff)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, tx.Commit()
}
