package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stackslice/internal/config"
	"stackslice/internal/importer"
	"stackslice/internal/metrics"
	"stackslice/internal/metrics/datadog"
	"stackslice/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "stackslice/internal/storage/all"
)

// main is the entry point for the import binary. It loads the pipeline
// config, optionally initializes a metrics backend, and runs the multi-site
// import.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/stackslice.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// Local overrides (DSN credentials, site list) live in .env when present.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	defer f.Close()

	var p config.Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		fatalf("decode config: %v", err)
	}
	p.ApplyEnv()

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		jobName := p.Job
		if jobName == "" {
			jobName = "stackslice_import"
		}
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	// Ctrl-C stops after the current batch; the completion-marker scheme
	// makes a rerun pick up cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if *verbose {
		log.Printf("pipeline: sites=%v data_dir=%s storage=%s", p.Sites, p.DataDir, p.Storage.Kind)
	}

	repo, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.ExpandedDSN()})
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	im := &importer.Importer{
		Repo:      repo,
		DataDir:   p.DataDir,
		BatchSize: p.Runtime.BatchSize,
	}
	rep := im.ImportAll(ctx, p.Sites)

	for _, site := range rep.Sites {
		for _, e := range site.Entities {
			switch e.Status {
			case importer.StatusFailed:
				log.Printf("site=%s entity=%s FAILED: %s", site.Site, e.Entity, e.Err)
			default:
				if *verbose {
					log.Printf("site=%s entity=%s status=%s imported=%d skipped=%d",
						site.Site, e.Entity, e.Status, e.Imported, e.Skipped)
				}
			}
		}
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if rep.Failed() {
		os.Exit(1)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
