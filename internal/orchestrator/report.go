package orchestrator

import (
	"strings"
	"time"
)

// Status classifies one item's outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Steps records which of the five conceptual stages succeeded for an item.
type Steps struct {
	Discovery bool `json:"discovery"`
	Approval  bool `json:"approval"`
	Order     bool `json:"order"`
	Riddle    bool `json:"riddle"`
	Card      bool `json:"card"`
}

// Outcome is the per-item result of a run.
type Outcome struct {
	RowID  string `json:"rowId"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Steps  Steps  `json:"steps"`
	// Message carries a non-error note such as a manual checkout hint.
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report is the result of one run.
type Report struct {
	RunID      string    `json:"runId"`
	Mode       Mode      `json:"mode"`
	Processed  int       `json:"processed"`
	Outcomes   []Outcome `json:"results"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Count returns the number of outcomes with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Processed = len(r.Outcomes)
}

// classify maps invoked-step results to an outcome status.
func classify(results ...bool) Status {
	ok := 0
	for _, r := range results {
		if r {
			ok++
		}
	}
	switch {
	case len(results) > 0 && ok == len(results):
		return StatusSuccess
	case ok > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

func joinErrors(msgs ...string) string {
	var parts []string
	for _, m := range msgs {
		if m != "" {
			parts = append(parts, m)
		}
	}
	return strings.Join(parts, "; ")
}
