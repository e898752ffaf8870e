// Arena generation using layered simplex noise.
// Obstacles are placed on grid cells where normalized noise exceeds a
// threshold, leaving clear ground around the food source and the spawn area.
package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/forager/internal/geom"
)

// GenConfig holds arena generation parameters.
type GenConfig struct {
	Seed           int64       `yaml:"-"`
	HalfSize       float64     `yaml:"half_size"`       // arena spans [-HalfSize, HalfSize] on X and Z
	Cell           float64     `yaml:"cell"`            // grid spacing for obstacle candidates
	ObstacleLevel  float64     `yaml:"obstacle_level"`  // noise threshold (0.0-1.0); 1 disables obstacles
	ObstacleRadius float64     `yaml:"obstacle_radius"` // radius of each obstacle pillar
	Food           geom.Point3 `yaml:"food"`            // food source position
	FoodRadius     float64     `yaml:"food_radius"`
	SpawnHalf      float64     `yaml:"spawn_half"` // spawn area spans [-SpawnHalf, SpawnHalf] around the origin
	ClearRadius    float64     `yaml:"clear_radius"`
	BodyRadius     float64     `yaml:"body_radius"`
	AgentSpeed     float64     `yaml:"agent_speed"` // units per simulated second
}

// DefaultGenConfig returns the reference arena: a 50x50 floor, a 10x10
// spawn area at the center, and food in one corner.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		HalfSize:       25,
		Cell:           2.5,
		ObstacleLevel:  0.68,
		ObstacleRadius: 1,
		Food:           geom.Pt(18, 0, 18),
		FoodRadius:     0.5,
		SpawnHalf:      5,
		ClearRadius:    3,
		BodyRadius:     0.5,
		AgentSpeed:     3.5,
	}
}

// OpenConfig returns a small arena without obstacles for tests.
func OpenConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.ObstacleLevel = 1
	return cfg
}

// Generate creates an arena with obstacles and the food source.
func Generate(cfg GenConfig) *Arena {
	noise := opensimplex.NewNormalized(cfg.Seed)
	a := NewArena(cfg)

	if cfg.Cell <= 0 || cfg.ObstacleLevel >= 1 {
		return a
	}

	n := int(math.Floor(cfg.HalfSize / cfg.Cell))
	for i := -n; i <= n; i++ {
		for j := -n; j <= n; j++ {
			x, z := float64(i)*cfg.Cell, float64(j)*cfg.Cell
			c := geom.Pt(x, 0, z)
			if !a.inside(c, cfg.ObstacleRadius) || a.reserved(c) {
				continue
			}
			if octaveNoise(noise, x, z, 3, 0.08, 0.5) > cfg.ObstacleLevel {
				a.Obstacles = append(a.Obstacles, Obstacle{Center: c, Radius: cfg.ObstacleRadius})
			}
		}
	}
	return a
}

// reserved reports whether an obstacle at c would crowd the food or the spawn area.
func (a *Arena) reserved(c geom.Point3) bool {
	margin := a.cfg.ClearRadius + a.cfg.ObstacleRadius
	if c.Distance(a.Food) < margin {
		return true
	}
	h := a.cfg.SpawnHalf + a.cfg.ObstacleRadius
	return math.Abs(c.X) <= h && math.Abs(c.Z) <= h
}

// octaveNoise sums octaves of 2D noise, normalized back to the noise range.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
