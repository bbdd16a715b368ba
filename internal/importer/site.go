// Package importer drives dump imports: streaming XML rows through
// normalization into batched repository inserts, one site at a time, with a
// completion marker per (site, entity) guarding idempotency.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"stackslice/internal/dump"
	"stackslice/internal/metrics"
	"stackslice/internal/normalize"
	"stackslice/internal/sexml"
	"stackslice/internal/storage"
)

// FileMissingError marks an entity whose dump file is absent from the site
// directory. It fails that entity only; sibling entity types still import.
type FileMissingError struct {
	Site string
	Path string
}

func (e *FileMissingError) Error() string {
	return fmt.Sprintf("site %s: dump file missing: %s", e.Site, e.Path)
}

// Logger is the subset of log.Logger the importer writes progress to.
type Logger interface {
	Printf(format string, v ...any)
}

// rowBuffer is the parser-to-consumer channel depth. Enough to keep the
// decoder busy while a batch insert blocks, small enough that cancellation
// drains quickly.
const rowBuffer = 256

// Importer imports dump directories into a repository.
type Importer struct {
	Repo      storage.Repository
	DataDir   string
	BatchSize int
	Log       Logger
}

func (im *Importer) logf(format string, v ...any) {
	if im.Log != nil {
		im.Log.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// ImportSite imports every entity type for one site, in fixed dependency
// order. An entity that fails (missing file, malformed XML, insert error)
// is reported and the remaining entity types still run. Indexes are ensured
// once after the site's data lands.
func (im *Importer) ImportSite(ctx context.Context, site string) SiteReport {
	rep := SiteReport{Site: site}
	dir := filepath.Join(im.DataDir, site)

	start := time.Now()
	for _, e := range dump.ImportOrder {
		res := im.importEntity(ctx, site, dir, e)
		rep.Entities = append(rep.Entities, res)
		if res.Status == StatusFailed && ctx.Err() != nil {
			// Cancellation, not a data problem: stop touching this site.
			break
		}
	}

	if err := im.Repo.EnsureIndexes(ctx); err != nil {
		im.logf("site=%s ensure indexes: %v", site, err)
	}

	im.logf("site=%s done failed=%t duration=%s", site, rep.Failed(), time.Since(start).Round(time.Millisecond))
	return rep
}

func (im *Importer) importEntity(ctx context.Context, site, dir string, e dump.Entity) EntityResult {
	res := EntityResult{Entity: e.String()}
	tags := []string{"site:" + site, "entity:" + e.String()}

	fail := func(err error) EntityResult {
		res.Status = StatusFailed
		res.Err = err.Error()
		metrics.IncCounter("stackslice.import.failures", 1, tags...)
		im.logf("site=%s entity=%s failed: %v", site, e, err)
		return res
	}

	st, err := im.Repo.ImportState(ctx, site, e.String())
	if err != nil {
		return fail(fmt.Errorf("read import state: %w", err))
	}
	if st != nil {
		res.Status = StatusAlreadyDone
		res.Imported = st.Imported
		res.Skipped = st.Skipped
		im.logf("site=%s entity=%s already imported rows=%d", site, e, st.Imported)
		return res
	}

	// No marker. Any rows already present are leftovers from an interrupted
	// run and cannot be trusted as complete; clear and start over.
	n, err := im.Repo.RowCount(ctx, e.Table(), site)
	if err != nil {
		return fail(fmt.Errorf("count existing rows: %w", err))
	}
	if n > 0 {
		im.logf("site=%s entity=%s found %d rows without completion marker, re-importing", site, e, n)
		if err := im.Repo.DeleteSite(ctx, e.Table(), site); err != nil {
			return fail(fmt.Errorf("clear interrupted import: %w", err))
		}
	}

	path := filepath.Join(dir, e.FileName())
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fail(&FileMissingError{Site: site, Path: path})
		}
		return fail(err)
	}
	defer f.Close()

	imported, skipped, err := im.loadStream(ctx, site, e, f)
	if err != nil {
		return fail(err)
	}

	if err := im.Repo.MarkComplete(ctx, site, e.String(), imported, skipped); err != nil {
		return fail(fmt.Errorf("write completion marker: %w", err))
	}

	res.Status = StatusDone
	res.Imported = imported
	res.Skipped = skipped
	metrics.IncCounter("stackslice.import.rows", imported, tags...)
	if skipped > 0 {
		metrics.IncCounter("stackslice.import.skipped", skipped, tags...)
	}
	im.logf("site=%s entity=%s imported=%d skipped=%d", site, e, imported, skipped)
	return res
}

// loadStream runs the parse-normalize-load pipeline for one open dump file.
// The parser produces pooled rows on a channel; this goroutine consumes,
// normalizes, and batches them. Returns (imported, skipped, error).
func (im *Importer) loadStream(ctx context.Context, site string, e dump.Entity, f *os.File) (int64, int64, error) {
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan *sexml.Row, rowBuffer)
	parseDone := make(chan error, 1)
	go func() {
		parseDone <- sexml.StreamRows(pctx, e.FileName(), f, rows)
		close(rows)
	}()

	// On early return the parser must unblock and in-flight rows must leave
	// the pool permanently.
	drain := func() {
		cancel()
		for row := range rows {
			row.Drop()
		}
		<-parseDone
	}

	b := newBatcher(im.Repo, e.Table(), e.Columns(), im.BatchSize)
	var skipped int64

	for row := range rows {
		rec, err := normalize.Record(e, row)
		n := row.N
		row.Free()
		if err != nil {
			var skip *normalize.SkipError
			if errors.As(err, &skip) {
				skipped++
				im.logf("site=%s entity=%s record %d skipped: %v", site, e, n, err)
				continue
			}
			drain()
			return 0, 0, fmt.Errorf("normalize record %d: %w", n, err)
		}
		if err := b.Add(ctx, rec.Values(site)); err != nil {
			drain()
			return 0, 0, fmt.Errorf("insert batch: %w", err)
		}
	}

	if err := <-parseDone; err != nil {
		return 0, 0, err
	}
	if err := b.Flush(ctx); err != nil {
		return 0, 0, fmt.Errorf("insert final batch: %w", err)
	}
	return b.Total(), skipped, nil
}
