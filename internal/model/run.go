package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RunResult is an immutable snapshot of one test-suite execution.
// Build it with the parser (or NewRunResult) and do not mutate it afterwards;
// a newer run supersedes it instead.
type RunResult struct {
	ID string

	FailingTests map[string]struct{}
	Traces       map[string][]string

	// Frames maps a failing test to the last "path:name" frame seen in its
	// traceback. Informational only.
	Frames map[string]string

	// Total is nil when the runner summary line was missing.
	Total    *int
	Duration string

	RawOutput []string

	StartedAt  time.Time
	FinishedAt time.Time
	ExitCode   int
	Err        string
}

// NewRunResult returns an empty result with a fresh ID.
func NewRunResult() *RunResult {
	return &RunResult{
		ID:           uuid.NewString(),
		FailingTests: make(map[string]struct{}),
		Traces:       make(map[string][]string),
		Frames:       make(map[string]string),
	}
}

// EmptyResult is the "no previous run" sentinel: nothing failing, total unknown.
func EmptyResult() *RunResult {
	r := NewRunResult()
	r.ID = ""
	return r
}

// Failing returns the failing test identifiers in sorted order.
func (r *RunResult) Failing() []string {
	if r == nil {
		return nil
	}
	return sortedKeys(r.FailingTests)
}

// IsFailing reports whether id is in the failing set.
func (r *RunResult) IsFailing(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.FailingTests[id]
	return ok
}

// Trace returns the trace lines recorded for id.
func (r *RunResult) Trace(id string) []string {
	if r == nil {
		return nil
	}
	return r.Traces[id]
}

// TotalOr returns the total test count, or def when it is unknown.
func (r *RunResult) TotalOr(def int) int {
	if r == nil || r.Total == nil {
		return def
	}
	return *r.Total
}

// HasTotal reports whether the runner summary line was found.
func (r *RunResult) HasTotal() bool {
	return r != nil && r.Total != nil
}

// Elapsed parses Duration ("0.012s") into a time.Duration.
func (r *RunResult) Elapsed() (time.Duration, bool) {
	if r == nil || r.Duration == "" {
		return 0, false
	}
	d, err := time.ParseDuration(r.Duration)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Summary is a one-line human description of the result.
func (r *RunResult) Summary() string {
	if r == nil {
		return "no runs yet"
	}
	if r.Err != "" {
		return "run failed: " + r.Err
	}
	failing := len(r.FailingTests)
	if r.Total == nil {
		if failing == 0 {
			return "no test summary found"
		}
		return fmt.Sprintf("%d failing (total unknown)", failing)
	}
	s := fmt.Sprintf("%d tests ran", *r.Total)
	if r.Duration != "" {
		s += " in " + r.Duration
	}
	if failing == 0 {
		return s + ", all passing"
	}
	return fmt.Sprintf("%s, %d failing", s, failing)
}

// Clone returns a deep copy.
func (r *RunResult) Clone() *RunResult {
	if r == nil {
		return nil
	}
	c := *r
	c.FailingTests = make(map[string]struct{}, len(r.FailingTests))
	for k := range r.FailingTests {
		c.FailingTests[k] = struct{}{}
	}
	c.Traces = make(map[string][]string, len(r.Traces))
	for k, v := range r.Traces {
		c.Traces[k] = append([]string(nil), v...)
	}
	c.Frames = make(map[string]string, len(r.Frames))
	for k, v := range r.Frames {
		c.Frames[k] = v
	}
	if r.Total != nil {
		total := *r.Total
		c.Total = &total
	}
	c.RawOutput = append([]string(nil), r.RawOutput...)
	return &c
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
