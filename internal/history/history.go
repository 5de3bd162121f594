// Package history persists observed announcements in a local SQLite
// database so past speech can be queried after the fact.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"keyspeakd/internal/announce"
)

// Schema for the announcement history store.
const schema = `
CREATE TABLE IF NOT EXISTS announcements (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    received_ns     INTEGER NOT NULL,
    kind            INTEGER NOT NULL,
    package         TEXT NOT NULL,
    class           TEXT NOT NULL,
    added_count     INTEGER NOT NULL,
    event_time_ms   INTEGER NOT NULL,
    text            TEXT NOT NULL,
    token           INTEGER NOT NULL,
    suppressed      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_announcements_received ON announcements(received_ns);
`

// Record is one stored announcement. Suppressed records are echoes the
// monitor classified as duplicates; they are kept so the history shows
// what actually crossed the bus.
type Record struct {
	ID         int64          `json:"id"`
	ReceivedNs int64          `json:"received_ns"`
	Event      announce.Event `json:"event"`
	Suppressed bool           `json:"suppressed"`
}

// Store is the SQLite announcement history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Insert stores one announcement and returns its ID.
func (s *Store) Insert(r *Record) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO announcements (received_ns, kind, package, class, added_count, event_time_ms, text, token, suppressed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ReceivedNs, uint32(r.Event.Kind), r.Event.Package, r.Event.Class,
		r.Event.AddedCount, r.Event.EventTime, r.Event.Text, r.Event.Token, r.Suppressed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert announcement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// Recent returns up to limit announcements, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, received_ns, kind, package, class, added_count, event_time_ms, text, token, suppressed
		FROM announcements
		ORDER BY received_ns DESC, id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent announcements: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Range returns announcements received within [startNs, endNs], oldest
// first.
func (s *Store) Range(startNs, endNs int64) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, received_ns, kind, package, class, added_count, event_time_ms, text, token, suppressed
		FROM announcements
		WHERE received_ns >= ? AND received_ns <= ?
		ORDER BY received_ns ASC, id ASC`, startNs, endNs,
	)
	if err != nil {
		return nil, fmt.Errorf("query announcement range: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CountSince returns how many announcements were received at or after
// startNs.
func (s *Store) CountSince(startNs int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM announcements WHERE received_ns >= ?`, startNs,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count announcements: %w", err)
	}
	return count, nil
}

// PruneBefore deletes announcements received before cutoffNs and
// returns how many were removed.
func (s *Store) PruneBefore(cutoffNs int64) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM announcements WHERE received_ns < ?`, cutoffNs)
	if err != nil {
		return 0, fmt.Errorf("prune announcements: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return removed, nil
}

// Stats returns the total and suppressed announcement counts.
func (s *Store) Stats() (total, suppressed int64, err error) {
	err = s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(suppressed), 0) FROM announcements`,
	).Scan(&total, &suppressed)
	if err != nil {
		return 0, 0, fmt.Errorf("announcement stats: %w", err)
	}
	return total, suppressed, nil
}

// scanRecords is a helper to scan announcement rows into a slice.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record

	for rows.Next() {
		var r Record
		var kind uint32

		if err := rows.Scan(&r.ID, &r.ReceivedNs, &kind, &r.Event.Package, &r.Event.Class,
			&r.Event.AddedCount, &r.Event.EventTime, &r.Event.Text, &r.Event.Token, &r.Suppressed); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		r.Event.Kind = announce.Kind(kind)

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate announcements: %w", err)
	}

	return records, nil
}
