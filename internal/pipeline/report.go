package pipeline

import (
	"sort"
	"time"
)

// Statuses used for directories and groups.
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusPlanned   = "planned"
)

// Report is the outcome of one Run. It is written as JSON with --report.
type Report struct {
	RunID  string `json:"run_id"`
	Root   string `json:"root"`
	DryRun bool   `json:"dry_run"`
	Codec  string `json:"codec"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary     Summary           `json:"summary"`
	Directories []DirectoryResult `json:"directories"`
}

type Summary struct {
	Directories int `json:"directories"`
	Processed   int `json:"processed"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Planned     int `json:"planned"`

	Groups       int `json:"groups"`
	Composites   int `json:"composites"`
	GroupsFailed int `json:"groups_failed"`
	ProbeFailed  int `json:"probe_failed"`
}

// DirectoryResult is the outcome for one scanned directory.
type DirectoryResult struct {
	Path   string        `json:"path"`
	Status string        `json:"status"`
	Reason string        `json:"reason,omitempty"`
	Output string        `json:"output,omitempty"`
	Groups []GroupResult `json:"groups,omitempty"`
}

// GroupResult is the outcome for one timestamp group.
type GroupResult struct {
	Timestamp string   `json:"timestamp"`
	Status    string   `json:"status"`
	Reason    string   `json:"reason,omitempty"`
	Strategy  string   `json:"strategy,omitempty"`
	Angles    []string `json:"angles,omitempty"`

	CommonSeconds float64 `json:"common_seconds,omitempty"`
	Output        string  `json:"output,omitempty"`

	// Excluded lists clips dropped from the group: probe failures and
	// duplicate angles.
	Excluded []Exclusion `json:"excluded,omitempty"`
}

type Exclusion struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Composited reports whether the group produced (or, in a dry run, would
// produce) a composite.
func (g GroupResult) Composited() bool {
	return g.Status == StatusProcessed || g.Status == StatusPlanned
}

// Finalize normalizes times to UTC, orders directories by path and derives
// the summary.
func (r *Report) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Directories, func(i, j int) bool {
		return r.Directories[i].Path < r.Directories[j].Path
	})

	s := Summary{Directories: len(r.Directories)}
	for _, d := range r.Directories {
		switch d.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusPlanned:
			s.Planned++
		}
		for _, g := range d.Groups {
			s.Groups++
			if g.Composited() {
				s.Composites++
			}
			if g.Status == StatusFailed {
				s.GroupsFailed++
			}
			for _, x := range g.Excluded {
				if x.Reason != reasonDuplicate {
					s.ProbeFailed++
				}
			}
		}
	}
	r.Summary = s
}
