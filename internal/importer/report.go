package importer

// Status is the terminal state of one (site, entity) import.
type Status string

const (
	// StatusDone: imported in this run.
	StatusDone Status = "done"
	// StatusAlreadyDone: completion marker found; zero writes performed.
	StatusAlreadyDone Status = "already_done"
	// StatusFailed: aborted by a file, parse, or load error. Sibling entity
	// types and other sites are unaffected.
	StatusFailed Status = "failed"
)

// EntityResult summarizes one (site, entity) import.
type EntityResult struct {
	Entity   string `json:"entity"`
	Status   Status `json:"status"`
	Imported int64  `json:"imported"`
	Skipped  int64  `json:"skipped"`
	Err      string `json:"error,omitempty"`
}

// SiteReport summarizes one site, entity results in import order.
type SiteReport struct {
	Site     string         `json:"site"`
	Entities []EntityResult `json:"entities"`
}

// Failed reports whether any entity for this site failed.
func (s SiteReport) Failed() bool {
	for _, e := range s.Entities {
		if e.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Report is the aggregate result of a multi-site run.
type Report struct {
	Sites []SiteReport `json:"sites"`
}

// Failed reports whether any site had a failed entity.
func (r Report) Failed() bool {
	for _, s := range r.Sites {
		if s.Failed() {
			return true
		}
	}
	return false
}
