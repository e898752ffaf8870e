// Spatial memory: the bounded list of points an agent has chosen to visit.
package agents

import "github.com/talgya/forager/internal/geom"

// SpatialMemory remembers up to max points. When full, the oldest is dropped.
type SpatialMemory struct {
	max    int
	radius float64
	points []geom.Point3
}

// NewSpatialMemory creates an empty memory.
func NewSpatialMemory(max int, radius float64) *SpatialMemory {
	if max < 1 {
		max = 1
	}
	return &SpatialMemory{max: max, radius: radius, points: make([]geom.Point3, 0, max)}
}

// Add remembers p, evicting the oldest point when over capacity.
func (m *SpatialMemory) Add(p geom.Point3) {
	m.points = append(m.points, p)
	if over := len(m.points) - m.max; over > 0 {
		m.points = append(m.points[:0], m.points[over:]...)
	}
}

// IsVisited reports whether any remembered point lies within the memory radius of p.
func (m *SpatialMemory) IsVisited(p geom.Point3) bool {
	for _, v := range m.points {
		if v.Distance(p) < m.radius {
			return true
		}
	}
	return false
}

// Points returns the remembered points, oldest first.
func (m *SpatialMemory) Points() []geom.Point3 {
	return append([]geom.Point3(nil), m.points...)
}

// Len returns the number of remembered points.
func (m *SpatialMemory) Len() int { return len(m.points) }
