// Package retro applies a rule's label mutations to messages that
// already existed before the rule was created: paginated candidate
// collection, chunked bulk mutation with per-item fallback, and a run
// report that survives partial failure.
package retro

import "fmt"

// Report is the accumulator for one Apply run. It only ever grows:
// counts are monotonic through pagination and batching, and the full
// report is returned even when individual items or whole chunks fail.
type Report struct {
	RunID      string   `json:"run_id,omitempty"`
	TotalFound int      `json:"total_found"`
	Processed  int      `json:"processed_count"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors,omitempty"`
	Truncated  bool     `json:"truncated"`
}

// Summary renders the three-way outcome: fully succeeded, partially
// succeeded with N errors, or failed outright.
func (r Report) Summary() string {
	var s string
	switch {
	case r.TotalFound == 0:
		return "no matching messages"
	case r.ErrorCount == 0:
		s = fmt.Sprintf("applied to %d message(s)", r.Processed)
	case r.Processed > 0:
		s = fmt.Sprintf("applied to %d message(s), %d error(s)", r.Processed, r.ErrorCount)
	default:
		s = fmt.Sprintf("failed: 0 of %d message(s) processed, %d error(s)", r.TotalFound, r.ErrorCount)
	}
	if r.Truncated {
		s += " (candidate list truncated)"
	}
	return s
}
