package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"stackslice/internal/storage"
)

// Repo implements storage.Repository for SQLite, the default analytical
// store (one local file, like the original single-file deployment).
//
// Key design points:
//   - SQLite has no native timestamp type. Timestamps are stored as
//     RFC3339Nano TEXT for reliable round-trip behavior and easy debugging.
//   - Booleans are stored as INTEGER 0/1.
//   - Bulk inserts are chunked to stay under the bind-variable limit, all
//     chunks inside one transaction so a batch stays atomic.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// The importer is a single sequential writer; one connection avoids
	// SQLITE_BUSY churn between the pool's connections on a shared file.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// maxBindVars stays well under modern SQLite's default variable limit while
// keeping statements large enough to amortize per-exec overhead.
const maxBindVars = 16000

func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range storage.Tables() {
		ddl, err := buildCreateTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) EnsureIndexes(ctx context.Context) error {
	for _, ix := range storage.Indexes() {
		cols := make([]string, 0, len(ix.Columns))
		for _, c := range ix.Columns {
			cols = append(cols, sqlIdent(c))
		}
		q := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			sqlIdent(ix.Name), ix.Table, strings.Join(cols, ", "),
		)
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create index %s: %w", ix.Name, err)
		}
	}
	return nil
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: insert into %s: no columns", table)
	}

	maxRows := maxBindVars / len(columns)
	if maxRows < 1 {
		maxRows = 1
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var affected int64
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		n, err := insertChunk(ctx, tx, table, columns, rows[start:end])
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}

func insertChunk(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for _, v := range row {
			args = append(args, bindValue(v))
		}
	}

	res, err := tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *Repo) RowCount(ctx context.Context, table, site string) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE site = ?", table)
	if err := r.db.QueryRowContext(ctx, q, site).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) DeleteSite(ctx context.Context, table, site string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE site = ?", table)
	_, err := r.db.ExecContext(ctx, q, site)
	return err
}

func (r *Repo) ImportState(ctx context.Context, site, entity string) (*storage.ImportState, error) {
	q := fmt.Sprintf(
		"SELECT imported, skipped, completed_at FROM %s WHERE site = ? AND entity = ?",
		storage.StateTable,
	)
	var (
		st  = storage.ImportState{Site: site, Entity: entity}
		raw string
	)
	err := r.db.QueryRowContext(ctx, q, site, entity).Scan(&st.Imported, &st.Skipped, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.CompletedAt, err = parseSQLiteTime(raw)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s.completed_at: %w", storage.StateTable, err)
	}
	return &st, nil
}

func (r *Repo) MarkComplete(ctx context.Context, site, entity string, imported, skipped int64) error {
	q := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (site, entity, imported, skipped, completed_at) VALUES (?, ?, ?, ?, ?)",
		storage.StateTable,
	)
	_, err := r.db.ExecContext(ctx, q, site, entity, imported, skipped, formatSQLiteTime(time.Now()))
	return err
}

func (r *Repo) Sites(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT site FROM %s ORDER BY site", storage.StateTable)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DB exposes the underlying handle for the read-side view queries, which
// run against the SQLite analytical store directly.
func (r *Repo) DB() *sql.DB { return r.db }

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	parts := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), sqliteType(c.Type))
		if c.NotNull {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	if len(t.PrimaryKey) > 0 {
		pk := make([]string, 0, len(t.PrimaryKey))
		for _, c := range t.PrimaryKey {
			pk = append(pk, sqlIdent(c))
		}
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", t.Name, strings.Join(parts, ",\n  ")), nil
}

func sqliteType(generic string) string {
	switch generic {
	case "integer", "boolean":
		return "INTEGER"
	case "timestamp":
		// Stored as RFC3339Nano TEXT; see bindValue.
		return "TEXT"
	default:
		return "TEXT"
	}
}

// bindValue converts Go values into SQLite-stable representations.
func bindValue(v any) any {
	switch tv := v.(type) {
	case time.Time:
		return formatSQLiteTime(tv)
	case bool:
		if tv {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseSQLiteTime parses timestamps returned by SQLite into time.Time.
//
// Supported formats:
//   - RFC3339Nano (what we write)
//   - RFC3339
//   - "2006-01-02 15:04:05" style variants from other tools (assumed UTC
//     when no zone is present)
func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if layout == "2006-01-02 15:04:05" {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts.UTC(), nil
			}
			continue
		}
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
