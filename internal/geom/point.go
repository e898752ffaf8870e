// Package geom provides the 3D point type shared by agents, the arena, and storage.
// The simulation plane is XZ; Y is up.
package geom

import "math"

// Point3 is a position or direction in world space.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Zero is the origin. Lookups that find nothing return it as a "none" sentinel.
var Zero = Point3{}

// Forward is the default heading of a freshly spawned body.
var Forward = Point3{Z: 1}

// Pt is a convenience constructor for Point3.
func Pt(x, y, z float64) Point3 { return Point3{x, y, z} }

// Add returns p + o.
func (p Point3) Add(o Point3) Point3 {
	return Point3{p.X + o.X, p.Y + o.Y, p.Z + o.Z}
}

// Sub returns p - o.
func (p Point3) Sub(o Point3) Point3 {
	return Point3{p.X - o.X, p.Y - o.Y, p.Z - o.Z}
}

// Scale returns p multiplied by s.
func (p Point3) Scale(s float64) Point3 {
	return Point3{p.X * s, p.Y * s, p.Z * s}
}

// Dot returns the dot product of p and o.
func (p Point3) Dot(o Point3) float64 {
	return p.X*o.X + p.Y*o.Y + p.Z*o.Z
}

// Length returns the Euclidean length of p.
func (p Point3) Length() float64 {
	return math.Sqrt(p.Dot(p))
}

// Distance returns the Euclidean distance between p and o.
func (p Point3) Distance(o Point3) float64 {
	return p.Sub(o).Length()
}

// Normalized returns the unit vector in p's direction, or Zero for a zero vector.
func (p Point3) Normalized() Point3 {
	l := p.Length()
	if l < 1e-9 {
		return Zero
	}
	return p.Scale(1 / l)
}

// Flat returns p with Y dropped to zero.
func (p Point3) Flat() Point3 {
	return Point3{X: p.X, Z: p.Z}
}

// IsZero reports whether p equals the Zero sentinel.
func (p Point3) IsZero() bool {
	return p == Zero
}

// Angle returns the unsigned angle between a and b in degrees, in [0, 180].
// Zero vectors yield 0.
func Angle(a, b Point3) float64 {
	la, lb := a.Length(), b.Length()
	if la < 1e-9 || lb < 1e-9 {
		return 0
	}
	cos := a.Dot(b) / (la * lb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// Yaw returns the heading of a direction in the XZ plane, in degrees, measured
// clockwise from +Z (so +X is 90).
func Yaw(dir Point3) float64 {
	return math.Atan2(dir.X, dir.Z) * 180 / math.Pi
}

// FromYaw returns the unit vector in the XZ plane for a heading in degrees.
func FromYaw(deg float64) Point3 {
	rad := deg * math.Pi / 180
	return Point3{X: math.Sin(rad), Z: math.Cos(rad)}
}

// RotateYaw rotates dir about the Y axis by deg degrees.
func RotateYaw(dir Point3, deg float64) Point3 {
	rad := deg * math.Pi / 180
	s, c := math.Sin(rad), math.Cos(rad)
	return Point3{
		X: dir.X*c + dir.Z*s,
		Y: dir.Y,
		Z: -dir.X*s + dir.Z*c,
	}
}
