package postgres

import (
	"strings"
	"testing"

	"stackslice/internal/storage"
)

func TestBuildInsertSQL_PlaceholderNumbering(t *testing.T) {
	sql, args, err := buildInsertSQL("tags",
		[]string{"site", "id", "tag_name"},
		[][]any{
			{"stackoverflow", int64(1), "go"},
			{"stackoverflow", int64(2), "sql"},
		})
	if err != nil {
		t.Fatalf("buildInsertSQL() err=%v", err)
	}

	want := `INSERT INTO tags ("site", "id", "tag_name") VALUES ($1, $2, $3), ($4, $5, $6)`
	if sql != want {
		t.Fatalf("sql=\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 6 {
		t.Fatalf("args=%d, want 6", len(args))
	}
	if args[0] != "stackoverflow" || args[4] != int64(2) {
		t.Fatalf("args misordered: %v", args)
	}
}

func TestBuildInsertSQL_MisalignedRow(t *testing.T) {
	_, _, err := buildInsertSQL("tags", []string{"site", "id"}, [][]any{{"stackoverflow"}})
	if err == nil || !strings.Contains(err.Error(), "values") {
		t.Fatalf("err=%v, want row-width mismatch", err)
	}
}

func TestBuildCreateTableSQL_TypesAndKeys(t *testing.T) {
	spec := storage.TableSpec{
		Name: "badges",
		Columns: []storage.ColumnSpec{
			{Name: "site", Type: "text", NotNull: true},
			{Name: "id", Type: "integer", NotNull: true},
			{Name: "date", Type: "timestamp"},
			{Name: "tag_based", Type: "boolean"},
		},
		PrimaryKey: []string{"site", "id"},
	}

	ddl, err := buildCreateTableSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateTableSQL() err=%v", err)
	}
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS badges",
		`"site" TEXT NOT NULL`,
		`"id" BIGINT NOT NULL`,
		`"date" TIMESTAMPTZ`,
		`"tag_based" BOOLEAN`,
		`PRIMARY KEY ("site", "id")`,
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("ddl missing %q:\n%s", want, ddl)
		}
	}
}

func TestBuildCreateTableSQL_SchemaTablesAreBuildable(t *testing.T) {
	// Every table in the shared schema must render without error.
	for _, spec := range storage.Tables() {
		if _, err := buildCreateTableSQL(spec); err != nil {
			t.Fatalf("buildCreateTableSQL(%s) err=%v", spec.Name, err)
		}
	}
}

func TestPgIdent_EscapesQuotes(t *testing.T) {
	if got := pgIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("pgIdent=%q", got)
	}
}
