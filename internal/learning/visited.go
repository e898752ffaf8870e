package learning

// VisitedStates is the set of discretized states an agent has reached this
// run. It only grows; a new agent starts with an empty set.
type VisitedStates struct {
	seen map[int]struct{}
}

// NewVisitedStates returns an empty set.
func NewVisitedStates() *VisitedStates {
	return &VisitedStates{seen: make(map[int]struct{})}
}

// Add inserts state and reports whether it was new.
func (v *VisitedStates) Add(state int) bool {
	if _, ok := v.seen[state]; ok {
		return false
	}
	v.seen[state] = struct{}{}
	return true
}

// Contains reports whether state has been seen.
func (v *VisitedStates) Contains(state int) bool {
	_, ok := v.seen[state]
	return ok
}

// Len returns the number of distinct states seen.
func (v *VisitedStates) Len() int { return len(v.seen) }

// Clear empties the set.
func (v *VisitedStates) Clear() {
	clear(v.seen)
}
