// Package datadog implements a Datadog backend for the internal/metrics
// facade.
//
// Submitting only once at process exit makes dashboards awkward for long
// imports (a single spike instead of a time series), so this backend:
//   - buffers counters in-memory (lock-protected)
//   - periodically Flush()es on a ticker (default: once per minute)
//   - Flush()es one final time on Close()
//
// Concurrency model:
//   - Import goroutines call IncCounter at any time.
//   - Flush snapshots and resets buffers under a mutex, then submits
//     out-of-lock.
//   - The flush loop calls Flush() periodically; Close() stops the loop.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "stackslice".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets them; unit tests do,
	// to avoid real network submission and nondeterministic clocks.
	now       func() time.Time
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal interface needed to submit metrics. The
// SDK exposes a concrete *datadogV2.MetricsApi; depending on this interface
// instead enables deterministic tests with a fake submitter.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api      metricsSubmitter
	ctx      context.Context
	baseTags []string
	now      func() time.Time

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	name  string
	tags  []string
	value int64
}

// NewBackend creates the backend and starts its periodic flush goroutine.
// Credentials come from the environment (DD_API_KEY, DD_SITE) via the SDK's
// default context.
func NewBackend(ctx context.Context, opts Options) (*Backend, error) {
	jobName := opts.JobName
	if jobName == "" {
		jobName = "stackslice"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}

	api := opts.submitter
	if api == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		api = datadogV2.NewMetricsApi(client)
		ctx = dd.NewDefaultContext(ctx)
	}

	b := &Backend{
		api:        api,
		ctx:        ctx,
		baseTags:   append([]string{"job:" + jobName}, opts.Tags...),
		now:        now,
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		counters:   map[string]*counter{},
	}
	go b.flushLoop()
	return b, nil
}

func (b *Backend) IncCounter(name string, delta int64, tags ...string) {
	key := seriesKey(name, tags)

	b.mu.Lock()
	c := b.counters[key]
	if c == nil {
		c = &counter{name: name, tags: append([]string{}, tags...)}
		b.counters[key] = c
	}
	c.value += delta
	b.mu.Unlock()
}

// Flush snapshots and resets the buffered counters, then submits them.
func (b *Backend) Flush() error {
	b.mu.Lock()
	snapshot := b.counters
	b.counters = map[string]*counter{}
	b.mu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}

	ts := b.now().Unix()
	series := make([]datadogV2.MetricSeries, 0, len(snapshot))
	for _, c := range snapshot {
		series = append(series, datadogV2.MetricSeries{
			Metric: c.name,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: []datadogV2.MetricPoint{{
				Timestamp: dd.PtrInt64(ts),
				Value:     dd.PtrFloat64(float64(c.value)),
			}},
			Tags: append(append([]string{}, b.baseTags...), c.tags...),
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Metric < series[j].Metric })

	_, _, err := b.api.SubmitMetrics(b.ctx, datadogV2.MetricPayload{Series: series})
	if err != nil {
		return fmt.Errorf("datadog: submit metrics: %w", err)
	}
	return nil
}

// Close stops the periodic flush loop and performs a final Flush. This is
// the clean shutdown path; defer it at process start.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

func (b *Backend) flushLoop() {
	defer close(b.doneCh)
	t := time.NewTicker(b.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

func seriesKey(name string, tags []string) string {
	if len(tags) == 0 {
		return name
	}
	sorted := append([]string{}, tags...)
	sort.Strings(sorted)
	return name + "|" + strings.Join(sorted, ",")
}

// ParseTagsCSV splits a comma-separated tag list ("env:prod,team:data"),
// trimming whitespace and dropping empty entries.
func ParseTagsCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
