package sexml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/htmlindex"
)

// ParseError reports malformed XML. It is fatal for the file being parsed:
// a truncated or corrupt dump cannot be partially trusted past the failure
// point, so the caller aborts that entity type's import.
type ParseError struct {
	File   string
	Record int   // last complete record before the failure
	Offset int64 // byte offset reported by the decoder
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: record %d, offset %d: %v", e.File, e.Record, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StreamRows decodes one dump document from src and sends one pooled *Row
// per child element of the document root, in document order.
//
// Streaming behavior:
//   - Token-level decoding only; the document is never materialized. Peak
//     memory is one record's attributes regardless of file size.
//   - Attribute values arrive XML-unescaped (encoding/xml's behavior); no
//     further text processing happens here.
//   - Elements with no attributes produce a Row with an empty Attrs map.
//
// The consumer owns each delivered Row (Free on the normal path). On ctx
// cancellation in-flight rows are Dropped, not re-pooled.
func StreamRows(ctx context.Context, file string, src io.Reader, out chan<- *Row) error {
	dec := xml.NewDecoder(src)
	dec.CharsetReader = charsetReader

	var (
		n     int  // records delivered
		depth int  // element nesting depth; root is depth 0
		root  bool // root start element seen
	)

	parseErr := func(err error) error {
		return &ParseError{File: file, Record: n, Offset: dec.InputOffset(), Err: err}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tok, err := dec.Token()
		if err == io.EOF {
			if !root {
				// Empty document: EOF before any root element.
				return parseErr(io.ErrUnexpectedEOF)
			}
			return nil
		}
		if err != nil {
			// The decoder reports truncation inside an open element as a
			// SyntaxError, not a clean EOF; normalize so callers can test
			// errors.Is(err, io.ErrUnexpectedEOF) for truncated files.
			var se *xml.SyntaxError
			if errors.As(err, &se) && se.Msg == "unexpected EOF" {
				err = io.ErrUnexpectedEOF
			}
			return parseErr(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !root {
				root = true
				depth = 1
				continue
			}
			if depth != 1 {
				// Unexpected nesting inside a record element; dumps are flat.
				if err := dec.Skip(); err != nil {
					return parseErr(err)
				}
				continue
			}

			n++
			row := GetRow()
			row.N = n
			for _, a := range t.Attr {
				row.Attrs[a.Name.Local] = a.Value
			}

			// Consume the element's end tag (records are self-closing in
			// practice, but Skip is correct either way).
			if err := dec.Skip(); err != nil {
				row.Drop()
				return parseErr(err)
			}

			select {
			case out <- row:
			case <-ctx.Done():
				row.Drop()
				return ctx.Err()
			}

		case xml.EndElement:
			if depth > 0 {
				depth--
			}
		}
	}
}

// charsetReader lets the decoder handle dumps with a non-UTF-8 XML
// declaration (older archives carry ISO-8859-1 or windows-1252 labels).
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
