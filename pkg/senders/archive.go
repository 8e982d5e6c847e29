/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: archive.go
Description: Local archive sender for the CrashGuard engine. Inserts delivered
reports into a SQLite database so hosts keep a queryable local history, useful as
a secondary sink behind a network sender and as the sole sink in air-gapped
deployments.
*/

package senders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kleascm/crashguard/pkg/report"
)

// ArchiveSender writes reports into a local sqlite database.
type ArchiveSender struct {
	db *sql.DB
}

// NewArchiveSender opens (or creates) the archive database at path. Pass
// ":memory:" for an in-memory archive (used by tests).
func NewArchiveSender(path string) (*ArchiveSender, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	// Single connection avoids "database is locked" errors under the
	// sequential sender model.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT,
		is_silent INTEGER NOT NULL DEFAULT 0,
		crash_date TEXT,
		archived_at TEXT NOT NULL,
		content TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create archive schema: %w", err)
	}
	return &ArchiveSender{db: db}, nil
}

func (s *ArchiveSender) Name() string {
	return "archive"
}

// Send archives the full serialized record plus the columns worth querying.
func (s *ArchiveSender) Send(ctx context.Context, record *report.Record) error {
	silent := 0
	if record.IsSilent() {
		silent = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (report_id, is_silent, crash_date, archived_at, content) VALUES (?, ?, ?, ?, ?)`,
		record.Get(report.FieldReportID),
		silent,
		record.Get(report.FieldCrashDate),
		time.Now().Format(time.RFC3339),
		string(record.Marshal()),
	)
	if err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	return nil
}

// Count returns the number of archived reports.
func (s *ArchiveSender) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count archived reports: %w", err)
	}
	return count, nil
}

// Close closes the underlying database connection.
func (s *ArchiveSender) Close() error {
	return s.db.Close()
}
