package datadog

import (
	"context"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newTestBackend(t *testing.T, fs *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:    "test",
		FlushEvery: 24 * time.Hour, // keep the loop quiet during tests
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	return b
}

func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	b.IncCounter("stackslice.import.rows", 3, "entity:posts", "site:a")
	b.IncCounter("stackslice.import.rows", 2, "entity:posts", "site:a")
	b.IncCounter("stackslice.import.skipped", 1, "entity:posts", "site:a")

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}
	if len(payload.Series) != 2 {
		t.Fatalf("series.len=%d, want 2", len(payload.Series))
	}

	// Series are sorted by metric name; rows comes before skipped.
	rows := payload.Series[0]
	if rows.Metric != "stackslice.import.rows" {
		t.Fatalf("Metric=%q, want stackslice.import.rows", rows.Metric)
	}
	if rows.Points[0].Value == nil || *rows.Points[0].Value != 5 {
		t.Fatalf("rows value=%v, want 5 (accumulated)", rows.Points[0].Value)
	}
	if rows.Points[0].Timestamp == nil || *rows.Points[0].Timestamp != 1000 {
		t.Fatalf("timestamp=%v, want 1000", rows.Points[0].Timestamp)
	}
	if !contains(rows.Tags, "job:test") || !contains(rows.Tags, "entity:posts") {
		t.Fatalf("tags missing job/entity: %v", rows.Tags)
	}

	// Buffers reset: second flush submits nothing.
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls after empty flush=%d, want 1", fs.count())
	}
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 0 {
		t.Fatalf("submission count=%d, want 0", fs.count())
	}
}

func TestClose_FinalFlush(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)

	b.IncCounter("stackslice.import.rows", 1)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1 (final flush)", fs.count())
	}
}

func TestIncCounter_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	const workers, iters = 8, 2000
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				b.IncCounter("stackslice.import.rows", 1, "entity:votes")
			}
		}()
	}
	wg.Wait()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}
	if got := *payload.Series[0].Points[0].Value; got != workers*iters {
		t.Fatalf("accumulated=%v, want %d", got, workers*iters)
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty_returns_nil", in: "", want: nil},
		{
			name: "trims_and_skips_empty_segments",
			in:   " env:prod , ,service:stackslice,  ,team:data ",
			want: []string{"env:prod", "service:stackslice", "team:data"},
		},
		{name: "single_tag", in: "env:dev", want: []string{"env:dev"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ParseTagsCSV(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
