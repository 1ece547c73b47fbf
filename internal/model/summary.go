package model

import "fmt"

// Outcome is the per-item result of one pipeline step.
type Outcome int

const (
	// OutcomeResolved means a provider produced a fresh result.
	OutcomeResolved Outcome = iota
	// OutcomeCached means the result came from the cache without a network call.
	OutcomeCached
	// OutcomeFailed means every strategy missed; the item keeps or receives the sentinel.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeCached:
		return "cached"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure records one item that did not resolve.
type Failure struct {
	Key       string `json:"key"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent" or "" for a plain miss
}

// RunSummary aggregates a run. It only lives in logs and the final report.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Cached     int       `json:"cached"` // subset of Succeeded
	Partial    bool      `json:"partial"`
	StopReason string    `json:"stop_reason,omitempty"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Record counts one applied outcome.
func (s *RunSummary) Record(o Outcome) {
	s.Processed++
	switch o {
	case OutcomeResolved:
		s.Succeeded++
	case OutcomeCached:
		s.Succeeded++
		s.Cached++
	case OutcomeFailed:
		s.Failed++
	}
}

// Remaining is the number of selected items the run never reached.
func (s RunSummary) Remaining() int {
	if r := s.Total - s.Processed; r > 0 {
		return r
	}
	return 0
}

func (s RunSummary) String() string {
	status := "complete"
	if s.Partial {
		status = "partial"
	}
	return fmt.Sprintf("%s: total=%d processed=%d updated=%d failed=%d cached=%d",
		status, s.Total, s.Processed, s.Succeeded, s.Failed, s.Cached)
}
