package model

// RunDiff is the change between two consecutive runs.
type RunDiff struct {
	NewlyFailing []string
	NewlyFixed   []string

	// CountDelta treats an unknown total as zero. CountKnown is true only when
	// both runs reported a total.
	CountDelta int
	CountKnown bool
}

// Diff compares previous against current. A nil previous behaves like
// EmptyResult, so the first run reports every failing test as new.
func Diff(previous, current *RunResult) RunDiff {
	if previous == nil {
		previous = EmptyResult()
	}
	if current == nil {
		current = EmptyResult()
	}

	d := RunDiff{
		NewlyFailing: difference(current.FailingTests, previous.FailingTests),
		NewlyFixed:   difference(previous.FailingTests, current.FailingTests),
		CountDelta:   current.TotalOr(0) - previous.TotalOr(0),
		CountKnown:   current.HasTotal() && previous.HasTotal(),
	}
	return d
}

// IsEmpty reports whether nothing changed.
func (d RunDiff) IsEmpty() bool {
	return len(d.NewlyFailing) == 0 && len(d.NewlyFixed) == 0 && d.CountDelta == 0
}

// difference returns a - b, sorted.
func difference(a, b map[string]struct{}) []string {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return sortedKeys(out)
}
