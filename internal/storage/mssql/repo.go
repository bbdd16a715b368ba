package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"stackslice/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// SQL Server specifics handled here:
//   - No CREATE TABLE IF NOT EXISTS; DDL is guarded with OBJECT_ID checks.
//   - Hard limit of 2100 parameters per statement; bulk inserts are chunked
//     well below it, all chunks of a batch inside one transaction.
//   - NVARCHAR(MAX) cannot be indexed, so text columns that participate in a
//     key or index are sized NVARCHAR(450).
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// SQL Server parameter limit is 2100; stay comfortably below it.
const maxParams = 2000

func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range storage.Tables() {
		ddl, err := buildCreateTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("mssql: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) EnsureIndexes(ctx context.Context) error {
	for _, ix := range storage.Indexes() {
		cols := make([]string, 0, len(ix.Columns))
		for _, c := range ix.Columns {
			cols = append(cols, msIdent(c))
		}
		q := fmt.Sprintf(
			"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s' AND object_id = OBJECT_ID(N'%s')) "+
				"CREATE INDEX %s ON %s (%s)",
			ix.Name, ix.Table, msIdent(ix.Name), ix.Table, strings.Join(cols, ", "),
		)
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("mssql: create index %s: %w", ix.Name, err)
		}
	}
	return nil
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: insert into %s: no columns", table)
	}

	maxRows := maxParams / len(columns)
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
		q, args, err := buildInsertSQL(table, columns, rows[start:end])
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("mssql: insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}

// buildInsertSQL constructs one multi-row INSERT with @pN placeholders.
// Pure function; placeholder numbering is unit-tested without a database.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(msIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			p++
		}
		b.WriteString(")")
		args = append(args, row...)
	}
	return b.String(), args, nil
}

func (r *Repo) RowCount(ctx context.Context, table, site string) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE site = @p1", table)
	if err := r.db.QueryRowContext(ctx, q, site).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) DeleteSite(ctx context.Context, table, site string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE site = @p1", table)
	_, err := r.db.ExecContext(ctx, q, site)
	return err
}

func (r *Repo) ImportState(ctx context.Context, site, entity string) (*storage.ImportState, error) {
	q := fmt.Sprintf(
		"SELECT imported, skipped, completed_at FROM %s WHERE site = @p1 AND entity = @p2",
		storage.StateTable,
	)
	st := storage.ImportState{Site: site, Entity: entity}
	err := r.db.QueryRowContext(ctx, q, site, entity).Scan(&st.Imported, &st.Skipped, &st.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// MarkComplete upserts the marker with a delete+insert inside one
// transaction (avoids MERGE, which is easy to get wrong under concurrency
// this pipeline doesn't have).
func (r *Repo) MarkComplete(ctx context.Context, site, entity string, imported, skipped int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	del := fmt.Sprintf("DELETE FROM %s WHERE site = @p1 AND entity = @p2", storage.StateTable)
	if _, err := tx.ExecContext(ctx, del, site, entity); err != nil {
		return err
	}
	ins := fmt.Sprintf(
		"INSERT INTO %s (site, entity, imported, skipped, completed_at) VALUES (@p1, @p2, @p3, @p4, @p5)",
		storage.StateTable,
	)
	if _, err := tx.ExecContext(ctx, ins, site, entity, imported, skipped, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
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

func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	keyed := keyedColumns(t)

	parts := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", msIdent(c.Name), msType(c.Type, keyed[c.Name]))
		if c.NotNull {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	if len(t.PrimaryKey) > 0 {
		pk := make([]string, 0, len(t.PrimaryKey))
		for _, c := range t.PrimaryKey {
			pk = append(pk, msIdent(c))
		}
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (\n  %s\n);",
		t.Name, t.Name, strings.Join(parts, ",\n  "),
	), nil
}

// keyedColumns reports which of a table's columns participate in the primary
// key or any index, and therefore cannot be NVARCHAR(MAX).
func keyedColumns(t storage.TableSpec) map[string]bool {
	out := make(map[string]bool)
	for _, c := range t.PrimaryKey {
		out[c] = true
	}
	for _, ix := range storage.Indexes() {
		if ix.Table != t.Name {
			continue
		}
		for _, c := range ix.Columns {
			out[c] = true
		}
	}
	return out
}

func msType(generic string, keyed bool) string {
	switch generic {
	case "integer":
		return "BIGINT"
	case "timestamp":
		return "DATETIME2"
	case "boolean":
		return "BIT"
	default:
		if keyed {
			return "NVARCHAR(450)"
		}
		return "NVARCHAR(MAX)"
	}
}

func msIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}
