package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stackslice/internal/storage"
)

// Repo implements storage.Repository for Postgres.
//
// Inserts are multi-row VALUES statements built as pure functions (testable
// without a database, especially placeholder numbering), chunked to respect
// the wire protocol's 16-bit parameter count, with all chunks of a batch in
// one transaction.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() { r.pool.Close() }

// maxParams stays under the extended-protocol limit of 65535 bind params.
const maxParams = 60000

func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range storage.Tables() {
		ddl, err := buildCreateTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) EnsureIndexes(ctx context.Context) error {
	for _, ix := range storage.Indexes() {
		cols := make([]string, 0, len(ix.Columns))
		for _, c := range ix.Columns {
			cols = append(cols, pgIdent(c))
		}
		q := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			pgIdent(ix.Name), ix.Table, strings.Join(cols, ", "),
		)
		if _, err := r.pool.Exec(ctx, q); err != nil {
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
		return 0, fmt.Errorf("postgres: insert into %s: no columns", table)
	}

	maxRows := maxParams / len(columns)
	if maxRows < 1 {
		maxRows = 1
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var affected int64
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		sql, args, err := buildInsertSQL(table, columns, rows[start:end])
		if err != nil {
			return 0, err
		}
		cmd, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		affected += cmd.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return affected, nil
}

// buildInsertSQL constructs a single multi-row INSERT and its args.
// It is pure and deterministic so placeholder numbering is unit-testable.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
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
			fmt.Fprintf(&b, "$%d", p)
			p++
		}
		b.WriteString(")")
		args = append(args, row...)
	}
	return b.String(), args, nil
}

func (r *Repo) RowCount(ctx context.Context, table, site string) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE site = $1", table)
	if err := r.pool.QueryRow(ctx, q, site).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) DeleteSite(ctx context.Context, table, site string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE site = $1", table)
	_, err := r.pool.Exec(ctx, q, site)
	return err
}

func (r *Repo) ImportState(ctx context.Context, site, entity string) (*storage.ImportState, error) {
	q := fmt.Sprintf(
		"SELECT imported, skipped, completed_at FROM %s WHERE site = $1 AND entity = $2",
		storage.StateTable,
	)
	st := storage.ImportState{Site: site, Entity: entity}
	err := r.pool.QueryRow(ctx, q, site, entity).Scan(&st.Imported, &st.Skipped, &st.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *Repo) MarkComplete(ctx context.Context, site, entity string, imported, skipped int64) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (site, entity, imported, skipped, completed_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (site, entity) DO UPDATE
		SET imported = EXCLUDED.imported,
		    skipped = EXCLUDED.skipped,
		    completed_at = EXCLUDED.completed_at`,
		storage.StateTable,
	)
	_, err := r.pool.Exec(ctx, q, site, entity, imported, skipped)
	return err
}

func (r *Repo) Sites(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT site FROM %s ORDER BY site", storage.StateTable)
	rows, err := r.pool.Query(ctx, q)
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

	parts := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", pgIdent(c.Name), pgType(c.Type))
		if c.NotNull {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	if len(t.PrimaryKey) > 0 {
		pk := make([]string, 0, len(t.PrimaryKey))
		for _, c := range t.PrimaryKey {
			pk = append(pk, pgIdent(c))
		}
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", t.Name, strings.Join(parts, ",\n  ")), nil
}

func pgType(generic string) string {
	switch generic {
	case "integer":
		return "BIGINT"
	case "timestamp":
		return "TIMESTAMPTZ"
	case "boolean":
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
