// Package sqlite is the SQLite notification archive.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/statecraft/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
	"github.com/louisbranch/statecraft/internal/services/chronicle/storage"
	"github.com/louisbranch/statecraft/internal/services/chronicle/storage/sqlite/migrations"
)

// Store provides SQLite-backed persistence for archived notifications.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.Archive = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens an archive SQLite store at the provided path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, now: time.Now}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append archives a batch in one transaction. Rows already archived for the
// session are left untouched.
func (s *Store) Append(ctx context.Context, sessionID string, batch []notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback archive write: %v", cause, rollbackErr)
		}
		return cause
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO archived_notifications (
    session_id, id, type, raw_type, priority, title, message, zone_id,
    country_ids_json, tick, created_at, archived_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return rollbackWith(fmt.Errorf("prepare archive insert: %w", err))
	}
	defer stmt.Close()

	archivedAt := toMillis(s.now())
	for _, n := range batch {
		if strings.TrimSpace(n.ID) == "" {
			return rollbackWith(fmt.Errorf("notification id is required"))
		}
		countries, err := json.Marshal(nonNil(n.CountryIDs))
		if err != nil {
			return rollbackWith(fmt.Errorf("encode country ids: %w", err))
		}
		if _, err := stmt.ExecContext(ctx,
			sessionID,
			n.ID,
			string(n.Type),
			n.RawType,
			string(n.Priority),
			n.Title,
			n.Message,
			n.ZoneID,
			string(countries),
			n.Date.Index(),
			toMillis(n.Timestamp),
			archivedAt,
		); err != nil {
			return rollbackWith(fmt.Errorf("archive notification %s: %w", n.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive write: %w", err)
	}
	return nil
}

// List returns archived notifications matching q, newest tick first.
func (s *Store) List(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	cond, err := parseFilter(q.Filter)
	if err != nil {
		return nil, err
	}

	query := `
SELECT session_id, id, type, raw_type, priority, title, message, zone_id,
       country_ids_json, tick, created_at, archived_at
FROM archived_notifications`
	params := cond.params
	if cond.clause != "" {
		query += "\nWHERE " + cond.clause
	}
	query += "\nORDER BY tick DESC, created_at DESC, id ASC\nLIMIT ?"
	params = append(params, q.NormalizedLimit())

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list archived notifications: %w", err)
	}
	defer rows.Close()

	var records []storage.Record
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan archived notification: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived notifications: %w", err)
	}
	return records, nil
}

type scanner func(dest ...any) error

func scanRecord(scan scanner) (storage.Record, error) {
	var (
		record      storage.Record
		n           notification.Notification
		typ         string
		priority    string
		countryJSON string
		tick        int
		createdAt   int64
		archivedAt  int64
	)
	if err := scan(
		&record.SessionID,
		&n.ID,
		&typ,
		&n.RawType,
		&priority,
		&n.Title,
		&n.Message,
		&n.ZoneID,
		&countryJSON,
		&tick,
		&createdAt,
		&archivedAt,
	); err != nil {
		return storage.Record{}, err
	}
	if err := json.Unmarshal([]byte(countryJSON), &n.CountryIDs); err != nil {
		return storage.Record{}, fmt.Errorf("decode country ids: %w", err)
	}
	if len(n.CountryIDs) == 0 {
		n.CountryIDs = nil
	}
	n.Type = notification.Type(typ)
	n.Priority = notification.Priority(priority)
	n.Date = calendar.FromIndex(tick)
	n.Timestamp = fromMillis(createdAt)
	record.Notification = n
	record.ArchivedAt = fromMillis(archivedAt)
	return record, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
