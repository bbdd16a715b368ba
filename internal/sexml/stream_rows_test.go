package sexml

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// runStream runs StreamRows in a goroutine, closes out when done, and
// returns the collected rows with the stream error. Rows are deep-copied so
// a test can Free them immediately and still inspect the attributes.
func runStream(ctx context.Context, input string, outBuf int) (rows []*Row, err error) {
	out := make(chan *Row, outBuf)

	done := make(chan struct{})
	go func() {
		defer close(done)
		err = StreamRows(ctx, "test.xml", strings.NewReader(input), out)
		close(out)
	}()

	for r := range out {
		cp := &Row{Attrs: make(map[string]string, len(r.Attrs)), N: r.N}
		for k, v := range r.Attrs {
			cp.Attrs[k] = v
		}
		r.Free()
		rows = append(rows, cp)
	}
	<-done
	return rows, err
}

func TestStreamRows_DeliversRowsInDocumentOrder(t *testing.T) {
	// Contract:
	//   - One Row per child element of the document root, in document order.
	//   - Attribute values are XML-unescaped.
	//   - N is the 1-based record number.
	input := `<?xml version="1.0" encoding="utf-8"?>
<posts>
  <row Id="1" Title="first &amp; foremost" />
  <row Id="2" Body="&lt;p&gt;hi&lt;/p&gt;" />
  <row />
</posts>`

	rows, err := runStream(context.Background(), input, 8)
	if err != nil {
		t.Fatalf("StreamRows() err=%v, want nil", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows.len=%d, want 3", len(rows))
	}

	if rows[0].N != 1 || rows[0].Attrs["Id"] != "1" {
		t.Fatalf("rows[0]={N:%d, Id:%q}, want {1, \"1\"}", rows[0].N, rows[0].Attrs["Id"])
	}
	if got := rows[0].Attrs["Title"]; got != "first & foremost" {
		t.Fatalf("Title=%q, want unescaped ampersand", got)
	}
	if got := rows[1].Attrs["Body"]; got != "<p>hi</p>" {
		t.Fatalf("Body=%q, want unescaped markup text", got)
	}
	if rows[2].N != 3 || len(rows[2].Attrs) != 0 {
		t.Fatalf("rows[2]={N:%d, attrs:%d}, want attribute-free row 3", rows[2].N, len(rows[2].Attrs))
	}
}

func TestStreamRows_MissingAttributesAreAbsentNotEmpty(t *testing.T) {
	// Dump files omit optional attributes entirely; a consumer must be able
	// to distinguish "absent" from "empty string".
	input := `<users><row Id="7" Location="" /></users>`

	rows, err := runStream(context.Background(), input, 2)
	if err != nil {
		t.Fatalf("StreamRows() err=%v, want nil", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows.len=%d, want 1", len(rows))
	}

	if v, ok := rows[0].Attrs["Location"]; !ok || v != "" {
		t.Fatalf("Location=(%q,%t), want present empty string", v, ok)
	}
	if _, ok := rows[0].Attrs["DisplayName"]; ok {
		t.Fatalf("DisplayName present, want absent")
	}
}

func TestStreamRows_MalformedAndTruncatedInput(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantRecord int // records delivered before the failure
	}{
		{
			name:       "truncated_mid_document",
			input:      `<posts><row Id="1" /><row Id="2"`,
			wantRecord: 1,
		},
		{
			name:       "root_never_closed",
			input:      `<posts><row Id="1" />`,
			wantRecord: 1,
		},
		{
			name:       "empty_input",
			input:      ``,
			wantRecord: 0,
		},
		{
			name:       "bad_token_after_records",
			input:      `<posts><row Id="1" /><row Id="2" x=</posts>`,
			wantRecord: 1,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rows, err := runStream(context.Background(), tc.input, 8)

			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err=%v, want *ParseError", err)
			}
			if pe.File != "test.xml" {
				t.Fatalf("ParseError.File=%q, want test.xml", pe.File)
			}
			if pe.Record != tc.wantRecord {
				t.Fatalf("ParseError.Record=%d, want %d", pe.Record, tc.wantRecord)
			}
			if len(rows) != tc.wantRecord {
				t.Fatalf("rows.len=%d, want %d delivered before failure", len(rows), tc.wantRecord)
			}
		})
	}
}

func TestStreamRows_TruncationWrapsUnexpectedEOF(t *testing.T) {
	// A document that simply stops must surface as unexpected EOF, not as a
	// clean end of stream, regardless of where the cut lands.
	tests := []struct {
		name  string
		input string
	}{
		{name: "root_never_closed", input: `<posts><row Id="1" />`},
		{name: "cut_inside_start_tag", input: `<posts><row Id="1" /><row Id="2"`},
		{name: "empty_input", input: ``},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := runStream(context.Background(), tc.input, 4)
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatalf("err=%v, want wrapped io.ErrUnexpectedEOF", err)
			}
		})
	}
}

func TestStreamRows_ContextCanceledReturnsEarly(t *testing.T) {
	// With a canceled context and an unbuffered channel the stream must not
	// block trying to send; it returns ctx.Err().
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan *Row)
	err := StreamRows(ctx, "test.xml", strings.NewReader(`<posts><row Id="1" /></posts>`), out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestStreamRows_NestedChildrenAreSkipped(t *testing.T) {
	// Dumps are flat in practice, but a record carrying child elements must
	// not derail the stream: the children are skipped, the record's own
	// attributes still arrive.
	input := `<posts><row Id="1"><junk a="b"/></row><row Id="2" /></posts>`

	rows, err := runStream(context.Background(), input, 4)
	if err != nil {
		t.Fatalf("StreamRows() err=%v, want nil", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows.len=%d, want 2", len(rows))
	}
	if rows[0].Attrs["Id"] != "1" || rows[1].Attrs["Id"] != "2" {
		t.Fatalf("ids=%q,%q, want 1,2", rows[0].Attrs["Id"], rows[1].Attrs["Id"])
	}
}

func TestGetRow_ReusedRowStartsClean(t *testing.T) {
	r := GetRow()
	r.Attrs["Id"] = "1"
	r.N = 42
	r.Free()

	got := GetRow()
	if got.N != 0 || len(got.Attrs) != 0 {
		t.Fatalf("reused row={N:%d, attrs:%d}, want zeroed", got.N, len(got.Attrs))
	}
	got.Free()
}

func BenchmarkStreamRows(b *testing.B) {
	// End-to-end decode of an in-memory document; no I/O.
	var sb strings.Builder
	sb.WriteString("<posts>")
	for i := 0; i < 200; i++ {
		sb.WriteString(`<row Id="1" PostTypeId="1" Score="5" Title="t" Body="b" Tags="|go|" />`)
	}
	sb.WriteString("</posts>")
	input := sb.String()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out := make(chan *Row, 256)
		go func() {
			for r := range out {
				r.Free()
			}
		}()
		if err := StreamRows(ctx, "bench.xml", strings.NewReader(input), out); err != nil {
			b.Fatalf("StreamRows() err=%v", err)
		}
		close(out)
	}
}
