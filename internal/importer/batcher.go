package importer

import (
	"context"

	"stackslice/internal/storage"
)

// DefaultBatchSize is the number of rows buffered before a flush when the
// configuration does not set one.
const DefaultBatchSize = 1000

// batcher accumulates rows for a single table and flushes them to the
// repository once the batch size is reached. Partial batches remain buffered
// until Flush is called.
type batcher struct {
	repo    storage.Repository
	table   string
	columns []string
	size    int

	rows  [][]any
	total int64
}

func newBatcher(repo storage.Repository, table string, columns []string, size int) *batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &batcher{
		repo:    repo,
		table:   table,
		columns: columns,
		size:    size,
		rows:    make([][]any, 0, size),
	}
}

// Add buffers one row and flushes the batch when full.
func (b *batcher) Add(ctx context.Context, values []any) error {
	b.rows = append(b.rows, values)
	if len(b.rows) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes any buffered rows. A failed flush keeps the buffer intact so
// the caller can inspect what was pending.
func (b *batcher) Flush(ctx context.Context) error {
	if len(b.rows) == 0 {
		return nil
	}
	n, err := b.repo.InsertRows(ctx, b.table, b.columns, b.rows)
	if err != nil {
		return err
	}
	b.total += n
	b.rows = b.rows[:0]
	return nil
}

// Total is the number of rows successfully flushed so far.
func (b *batcher) Total() int64 { return b.total }
