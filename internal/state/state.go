// Package state persists the per-site sync ledger: the last push, the
// last pull and the last database sync for every site, keyed by site
// ID. All sites share one SQLite file.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wpsync/wpsync/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS push_state (
    site_id TEXT PRIMARY KEY,
    revision TEXT NOT NULL,
    revision_note TEXT NOT NULL,
    completed_at TEXT NOT NULL, -- RFC3339Nano
    items_transferred INTEGER NOT NULL,
    items_failed INTEGER NOT NULL,
    bytes_transferred INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pull_state (
    site_id TEXT PRIMARY KEY,
    window_start TEXT NOT NULL,
    window_end TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    items_transferred INTEGER NOT NULL,
    items_failed INTEGER NOT NULL,
    bytes_transferred INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS db_state (
    site_id TEXT PRIMARY KEY,
    direction TEXT NOT NULL,
    table_count INTEGER NOT NULL,
    dump_bytes INTEGER NOT NULL,
    completed_at TEXT NOT NULL
);
`

const timeLayout = time.RFC3339Nano

// PushRecord is the durable result of the last push that moved or
// confirmed anything. Revision is the replan base for the next push.
type PushRecord struct {
	SiteID           string    `json:"site_id"`
	Revision         string    `json:"revision"`
	RevisionNote     string    `json:"revision_note,omitempty"`
	CompletedAt      time.Time `json:"completed_at"`
	ItemsTransferred int       `json:"items_transferred"`
	ItemsFailed      int       `json:"items_failed"`
	BytesTransferred int64     `json:"bytes_transferred"`
}

// PullRecord remembers the last pull for display purposes only; pull
// planning never consults it.
type PullRecord struct {
	SiteID           string    `json:"site_id"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	CompletedAt      time.Time `json:"completed_at"`
	ItemsTransferred int       `json:"items_transferred"`
	ItemsFailed      int       `json:"items_failed"`
	BytesTransferred int64     `json:"bytes_transferred"`
}

// DBRecord remembers the last database sync in either direction.
type DBRecord struct {
	SiteID      string    `json:"site_id"`
	Direction   string    `json:"direction"`
	TableCount  int       `json:"table_count"`
	DumpBytes   int64     `json:"dump_bytes"`
	CompletedAt time.Time `json:"completed_at"`
}

type dbPushRecord struct {
	SiteID           string `db:"site_id"`
	Revision         string `db:"revision"`
	RevisionNote     string `db:"revision_note"`
	CompletedAt      string `db:"completed_at"`
	ItemsTransferred int    `db:"items_transferred"`
	ItemsFailed      int    `db:"items_failed"`
	BytesTransferred int64  `db:"bytes_transferred"`
}

type dbPullRecord struct {
	SiteID           string `db:"site_id"`
	WindowStart      string `db:"window_start"`
	WindowEnd        string `db:"window_end"`
	CompletedAt      string `db:"completed_at"`
	ItemsTransferred int    `db:"items_transferred"`
	ItemsFailed      int    `db:"items_failed"`
	BytesTransferred int64  `db:"bytes_transferred"`
}

type dbDBRecord struct {
	SiteID      string `db:"site_id"`
	Direction   string `db:"direction"`
	TableCount  int    `db:"table_count"`
	DumpBytes   int64  `db:"dump_bytes"`
	CompletedAt string `db:"completed_at"`
}

// Store reads and writes sync records in a single SQLite database.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (creating if needed) the state database at path and
// applies the schema.
func NewStore(path string) (*Store, error) {
	d, err := db.NewSqliteDB(db.WithPath(path), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	if _, err := d.Exec(schema); err != nil {
		d.Close()
		return nil, fmt.Errorf("initialize state schema: %w", err)
	}

	return &Store{db: d}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PushRecord returns the stored push state for a site, or nil when the
// site has never completed a push.
func (s *Store) PushRecord(siteID string) (*PushRecord, error) {
	var row dbPushRecord
	err := s.db.Get(&row, "SELECT * FROM push_state WHERE site_id = ?", siteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query push state for %s: %w", siteID, err)
	}

	completed, err := parseTime(row.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("push state for %s: %w", siteID, err)
	}

	return &PushRecord{
		SiteID:           row.SiteID,
		Revision:         row.Revision,
		RevisionNote:     row.RevisionNote,
		CompletedAt:      completed,
		ItemsTransferred: row.ItemsTransferred,
		ItemsFailed:      row.ItemsFailed,
		BytesTransferred: row.BytesTransferred,
	}, nil
}

// SavePushRecord replaces the push state for the record's site.
func (s *Store) SavePushRecord(rec *PushRecord) error {
	if rec == nil || rec.SiteID == "" {
		return fmt.Errorf("push record requires a site id")
	}

	row := dbPushRecord{
		SiteID:           rec.SiteID,
		Revision:         rec.Revision,
		RevisionNote:     rec.RevisionNote,
		CompletedAt:      rec.CompletedAt.UTC().Format(timeLayout),
		ItemsTransferred: rec.ItemsTransferred,
		ItemsFailed:      rec.ItemsFailed,
		BytesTransferred: rec.BytesTransferred,
	}

	query := `INSERT OR REPLACE INTO push_state
	          (site_id, revision, revision_note, completed_at, items_transferred, items_failed, bytes_transferred)
	          VALUES (:site_id, :revision, :revision_note, :completed_at, :items_transferred, :items_failed, :bytes_transferred)`
	if _, err := s.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("save push state for %s: %w", rec.SiteID, err)
	}
	return nil
}

// PullRecord returns the stored pull state for a site, or nil when the
// site has never completed a pull.
func (s *Store) PullRecord(siteID string) (*PullRecord, error) {
	var row dbPullRecord
	err := s.db.Get(&row, "SELECT * FROM pull_state WHERE site_id = ?", siteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query pull state for %s: %w", siteID, err)
	}

	start, err := parseTime(row.WindowStart)
	if err != nil {
		return nil, fmt.Errorf("pull state for %s: %w", siteID, err)
	}
	end, err := parseTime(row.WindowEnd)
	if err != nil {
		return nil, fmt.Errorf("pull state for %s: %w", siteID, err)
	}
	completed, err := parseTime(row.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("pull state for %s: %w", siteID, err)
	}

	return &PullRecord{
		SiteID:           row.SiteID,
		WindowStart:      start,
		WindowEnd:        end,
		CompletedAt:      completed,
		ItemsTransferred: row.ItemsTransferred,
		ItemsFailed:      row.ItemsFailed,
		BytesTransferred: row.BytesTransferred,
	}, nil
}

// SavePullRecord replaces the pull state for the record's site.
func (s *Store) SavePullRecord(rec *PullRecord) error {
	if rec == nil || rec.SiteID == "" {
		return fmt.Errorf("pull record requires a site id")
	}

	row := dbPullRecord{
		SiteID:           rec.SiteID,
		WindowStart:      rec.WindowStart.UTC().Format(timeLayout),
		WindowEnd:        rec.WindowEnd.UTC().Format(timeLayout),
		CompletedAt:      rec.CompletedAt.UTC().Format(timeLayout),
		ItemsTransferred: rec.ItemsTransferred,
		ItemsFailed:      rec.ItemsFailed,
		BytesTransferred: rec.BytesTransferred,
	}

	query := `INSERT OR REPLACE INTO pull_state
	          (site_id, window_start, window_end, completed_at, items_transferred, items_failed, bytes_transferred)
	          VALUES (:site_id, :window_start, :window_end, :completed_at, :items_transferred, :items_failed, :bytes_transferred)`
	if _, err := s.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("save pull state for %s: %w", rec.SiteID, err)
	}
	return nil
}

// DBRecord returns the stored database sync state for a site, or nil
// when no database sync has completed.
func (s *Store) DBRecord(siteID string) (*DBRecord, error) {
	var row dbDBRecord
	err := s.db.Get(&row, "SELECT * FROM db_state WHERE site_id = ?", siteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query db state for %s: %w", siteID, err)
	}

	completed, err := parseTime(row.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("db state for %s: %w", siteID, err)
	}

	return &DBRecord{
		SiteID:      row.SiteID,
		Direction:   row.Direction,
		TableCount:  row.TableCount,
		DumpBytes:   row.DumpBytes,
		CompletedAt: completed,
	}, nil
}

// SaveDBRecord replaces the database sync state for the record's site.
func (s *Store) SaveDBRecord(rec *DBRecord) error {
	if rec == nil || rec.SiteID == "" {
		return fmt.Errorf("db record requires a site id")
	}

	row := dbDBRecord{
		SiteID:      rec.SiteID,
		Direction:   rec.Direction,
		TableCount:  rec.TableCount,
		DumpBytes:   rec.DumpBytes,
		CompletedAt: rec.CompletedAt.UTC().Format(timeLayout),
	}

	query := `INSERT OR REPLACE INTO db_state
	          (site_id, direction, table_count, dump_bytes, completed_at)
	          VALUES (:site_id, :direction, :table_count, :dump_bytes, :completed_at)`
	if _, err := s.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("save db state for %s: %w", rec.SiteID, err)
	}
	return nil
}

// ForgetSite removes every record for a site. Used when a site profile
// is deleted.
func (s *Store) ForgetSite(siteID string) error {
	for _, table := range []string{"push_state", "pull_state", "db_state"} {
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE site_id = ?", siteID); err != nil {
			return fmt.Errorf("forget %s for %s: %w", table, siteID, err)
		}
	}
	return nil
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", value, err)
	}
	return t, nil
}
