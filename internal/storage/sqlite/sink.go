package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"devsurvey/internal/report"
	"devsurvey/internal/storage"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
		return Open(ctx, cfg)
	})
}

// Sink stores reports in a long-format SQLite table (see storage.Record).
//
// SQLite allows one writer at a time; writes are serialized on mu and the
// pool is capped at one connection.
type Sink struct {
	db    *sql.DB
	table string
	runID string

	mu sync.Mutex
}

// Open connects to the database file at cfg.DSN and creates the report
// table if it does not exist.
func Open(ctx context.Context, cfg storage.Config) (*Sink, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Sink{db: db, table: cfg.TableName(), runID: cfg.RunID}
	if _, err := db.ExecContext(ctx, createTableSQL(s.table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table %s: %w", s.table, err)
	}
	return s, nil
}

// WriteReport replaces every row of (run, report) in one transaction.
func (s *Sink) WriteReport(ctx context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	del := "DELETE FROM " + sqliteIdent(s.table) + " WHERE run_id = ? AND report = ?"
	if _, err := tx.ExecContext(ctx, del, s.runID, r.Name); err != nil {
		return fmt.Errorf("sqlite: clear %s: %w", r.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range storage.Records(s.runID, r) {
		if _, err := stmt.ExecContext(ctx, rec.Args()...); err != nil {
			return fmt.Errorf("sqlite: insert %s row %d: %w", r.Name, rec.RowOrd, err)
		}
	}
	return tx.Commit()
}

func (s *Sink) Close() error { return s.db.Close() }

func createTableSQL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + sqliteIdent(table) + ` (
	run_id TEXT NOT NULL,
	report TEXT NOT NULL,
	row_ord INTEGER NOT NULL,
	index_name TEXT NOT NULL,
	index_value TEXT NOT NULL,
	metric TEXT NOT NULL,
	value REAL,
	PRIMARY KEY (run_id, report, row_ord, metric)
)`
}

func insertSQL(table string) string {
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(storage.RecordColumns)), ", ")
	return "INSERT OR REPLACE INTO " + sqliteIdent(table) +
		" (" + strings.Join(storage.RecordColumns, ", ") + ") VALUES (" + ph + ")"
}

func sqliteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
