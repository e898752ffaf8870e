// Package learning provides the tabular Q-learning store and the per-agent
// decision engine: state discretization, epsilon-greedy selection, reward
// shaping, and the update rule.
package learning

import (
	"math"
	"sort"
	"sync"
)

// Key identifies one (state, action) cell of the Q-table.
type Key struct {
	State  int `json:"state" db:"state"`
	Action int `json:"action" db:"action"`
}

// QTable maps (state, action) to a learned value. One table is shared by
// reference by every agent of a run mode; all access is serialized so agents
// may be ticked from more than one goroutine.
type QTable struct {
	mu     sync.Mutex
	values map[Key]float64
}

// NewQTable returns an empty table.
func NewQTable() *QTable {
	return &QTable{values: make(map[Key]float64)}
}

// FromMap builds a table from loaded values. The map is copied.
func FromMap(m map[Key]float64) *QTable {
	t := NewQTable()
	for k, v := range m {
		t.values[k] = v
	}
	return t
}

// Get returns Q(state, action). An absent entry reads as 0.0 and is
// materialized so later snapshots include it.
func (t *QTable) Get(state, action int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(Key{state, action})
}

// Set stores Q(state, action).
func (t *QTable) Set(state, action int, value float64) {
	t.mu.Lock()
	t.values[Key{state, action}] = value
	t.mu.Unlock()
}

// MaxQ returns max over a in [0, numActions) of Q(state, a), materializing
// every action of the state.
func (t *QTable) MaxQ(state, numActions int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxQ(state, numActions)
}

// Row returns Q(state, a) for every action, materializing the row.
func (t *QTable) Row(state, numActions int) []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	row := make([]float64, numActions)
	for a := range row {
		row[a] = t.get(Key{state, a})
	}
	return row
}

// Learn applies one Q-learning update as a single read-modify-write:
//
//	Q(s,a) <- Q(s,a) + alpha * (reward + gamma * max_a' Q(next,a') - Q(s,a))
//
// and returns the new value.
func (t *QTable) Learn(state, action int, reward float64, next, numActions int, alpha, gamma float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	maxNext := t.maxQ(next, numActions)
	k := Key{state, action}
	old := t.get(k)
	updated := old + alpha*(reward+gamma*maxNext-old)
	t.values[k] = updated
	return updated
}

// Len returns the number of materialized entries.
func (t *QTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}

// Snapshot returns a copy of every materialized entry.
func (t *QTable) Snapshot() map[Key]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Key]float64, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// Keys returns the materialized keys ordered by state then action.
func (t *QTable) Keys() []Key {
	t.mu.Lock()
	keys := make([]Key, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	t.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].State != keys[j].State {
			return keys[i].State < keys[j].State
		}
		return keys[i].Action < keys[j].Action
	})
	return keys
}

func (t *QTable) get(k Key) float64 {
	v, ok := t.values[k]
	if !ok {
		t.values[k] = 0
		return 0
	}
	return v
}

func (t *QTable) maxQ(state, numActions int) float64 {
	best := math.Inf(-1)
	for a := 0; a < numActions; a++ {
		if q := t.get(Key{state, a}); q > best {
			best = q
		}
	}
	return best
}
