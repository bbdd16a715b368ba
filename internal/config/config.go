// Package config defines the import pipeline configuration. Config is plain
// JSON loaded by the binary; environment variables override the site list
// and expand inside the DSN so credentials stay out of config files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SitesEnv overrides Pipeline.Sites with a comma-separated list when set.
const SitesEnv = "STACKSLICE_SITES"

type Pipeline struct {
	// Job names the run for logging and metrics tags.
	Job string `json:"job"`

	// Sites is the ordered list of site identifiers to import
	// (e.g. "ai.meta.stackexchange.com").
	Sites []string `json:"sites"`

	// DataDir holds one subdirectory per site with the extracted dump XML
	// files. Acquiring and extracting archives is not this pipeline's job.
	DataDir string `json:"data_dir"`

	Storage Storage `json:"storage"`
	Runtime Runtime `json:"runtime"`
}

type Storage struct {
	// Kind selects a registered backend: "sqlite" | "postgres" | "mssql".
	Kind string `json:"kind"`

	// DSN is expanded with os.ExpandEnv before use.
	DSN string `json:"dsn"`
}

type Runtime struct {
	// BatchSize is the number of normalized records accumulated before a
	// bulk insert. Default 1000.
	BatchSize int `json:"batch_size"`
}

// SiteDir returns the dump directory for one site.
func (p Pipeline) SiteDir(site string) string {
	return filepath.Join(p.DataDir, site)
}

// ExpandedDSN returns the DSN with environment variables expanded.
func (p Pipeline) ExpandedDSN() string {
	return os.ExpandEnv(p.Storage.DSN)
}

// ApplyEnv applies environment overrides: STACKSLICE_SITES replaces the
// configured site list when present.
func (p *Pipeline) ApplyEnv() {
	if v := os.Getenv(SitesEnv); v != "" {
		var sites []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sites = append(sites, s)
			}
		}
		if len(sites) > 0 {
			p.Sites = sites
		}
	}
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, addressed by a JSON-ish path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// ValidatePipeline reports configuration problems. Errors make the config
// unusable; warnings are advisory.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if len(p.Sites) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sites",
			Message:  fmt.Sprintf("at least one site is required (or set %s)", SitesEnv),
		})
	}
	seen := map[string]bool{}
	for i, s := range p.Sites {
		if strings.TrimSpace(s) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("sites[%d]", i),
				Message:  "site identifier must not be empty",
			})
			continue
		}
		if seen[s] {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("sites[%d]", i),
				Message:  fmt.Sprintf("duplicate site %q; later occurrence is a no-op", s),
			})
		}
		seen[s] = true
	}

	if strings.TrimSpace(p.DataDir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "data_dir",
			Message:  "data_dir is required",
		})
	}
	if strings.TrimSpace(p.Storage.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must be set (sqlite, postgres, mssql)",
		})
	}
	if strings.TrimSpace(p.Storage.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must be set",
		})
	}
	if p.Runtime.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must not be negative",
		})
	}

	return issues
}
