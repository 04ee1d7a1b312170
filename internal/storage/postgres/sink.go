package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"devsurvey/internal/report"
	"devsurvey/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
		return Open(ctx, cfg)
	})
}

/*
Sink stores reports in a long-format Postgres table (see storage.Record).

Each WriteReport runs in one transaction: rows of the same (run, report) are
deleted, then the new rows are sent as a single pgx.Batch of upserts.
*/
type Sink struct {
	pool  *pgxpool.Pool
	table string
	runID string
}

// Open creates a connection pool for cfg.DSN and ensures the report table.
// cfg.Table may be schema qualified ("analytics.survey_report_values").
func Open(ctx context.Context, cfg storage.Config) (*Sink, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	s := &Sink{pool: pool, table: cfg.TableName(), runID: cfg.RunID}

	for _, stmt := range createSQL(s.table) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: ensure %s: %w", s.table, err)
		}
	}
	return s, nil
}

// WriteReport replaces the rows of (run, report).
func (s *Sink) WriteReport(ctx context.Context, r *report.Report) error {
	recs := storage.Records(s.runID, r)
	ident := tableIdent(s.table)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM "+ident+" WHERE run_id = $1 AND report = $2", s.runID, r.Name); err != nil {
			return fmt.Errorf("postgres: clear %s: %w", r.Name, err)
		}
		if len(recs) == 0 {
			return nil
		}

		upsert := buildUpsertSQL(s.table)
		batch := &pgx.Batch{}
		for _, rec := range recs {
			batch.Queue(upsert, rec.Args()...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: write %s: %w", r.Name, err)
		}
		return nil
	})
}

func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}

// createSQL returns the DDL for the report table; a schema is created first
// when the name is qualified.
func createSQL(table string) []string {
	var out []string
	if schema, _ := splitQualifiedName(table); schema != "" {
		out = append(out, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize())
	}
	out = append(out, "CREATE TABLE IF NOT EXISTS "+tableIdent(table)+` (
	run_id text NOT NULL,
	report text NOT NULL,
	row_ord integer NOT NULL,
	index_name text NOT NULL,
	index_value text NOT NULL,
	metric text NOT NULL,
	value double precision,
	PRIMARY KEY (run_id, report, row_ord, metric)
)`)
	return out
}

// buildUpsertSQL is the single-row upsert queued per record.
func buildUpsertSQL(table string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(storage.RecordColumns, ", "))
	b.WriteString(") VALUES (")
	for i := range storage.RecordColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
	}
	b.WriteString(") ON CONFLICT (run_id, report, row_ord, metric) DO UPDATE SET ")
	b.WriteString("index_name = EXCLUDED.index_name, index_value = EXCLUDED.index_value, value = EXCLUDED.value")
	return b.String()
}

func splitQualifiedName(name string) (schema string, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func tableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}
