// Package knowledge holds what agents have learned about the arena: where the
// target was found and which regions turned out to be barren.
package knowledge

import (
	"sync"

	"github.com/talgya/forager/internal/geom"
)

// Areas is an ordered list of no-resource area centers. A point is inside
// the list when it lies strictly within radius of any center.
type Areas struct {
	mu     sync.RWMutex
	points []geom.Point3
}

// NewAreas returns a list seeded with pts (copied).
func NewAreas(pts []geom.Point3) *Areas {
	return &Areas{points: append([]geom.Point3(nil), pts...)}
}

// Add appends a center.
func (a *Areas) Add(p geom.Point3) {
	a.mu.Lock()
	a.points = append(a.points, p)
	a.mu.Unlock()
}

// Contains reports whether p is within radius of any center.
func (a *Areas) Contains(p geom.Point3, radius float64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, c := range a.points {
		if c.Distance(p) < radius {
			return true
		}
	}
	return false
}

// RemoveNear deletes every center within radius of p and returns how many went.
func (a *Areas) RemoveNear(p geom.Point3, radius float64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.points[:0]
	for _, c := range a.points {
		if c.Distance(p) >= radius {
			kept = append(kept, c)
		}
	}
	removed := len(a.points) - len(kept)
	a.points = kept
	return removed
}

// Points returns a copy of the centers in insertion order.
func (a *Areas) Points() []geom.Point3 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]geom.Point3(nil), a.points...)
}

// Len returns the number of centers.
func (a *Areas) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.points)
}

// Clear removes every center.
func (a *Areas) Clear() {
	a.mu.Lock()
	a.points = nil
	a.mu.Unlock()
}
