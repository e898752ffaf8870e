package knowledge

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/forager/internal/geom"
)

// Default storage keys.
const (
	FoodKey       = "KnowledgeBase"
	NoResourceKey = "NoFoodAreas"
)

// PointStore is the durable home of a point list. A missing key loads as an
// empty list with a nil error.
type PointStore interface {
	LoadPoints(key string) ([]geom.Point3, error)
	SavePoints(key string, pts []geom.Point3) error
}

// Base is the process-wide knowledge base. Both lists only grow in memory
// (except for RemoveNoResourceNear) and each mutation rewrites its list to
// the store while holding the lock, so a reader never sees a half-applied change.
type Base struct {
	mu         sync.Mutex
	store      PointStore
	foodKey    string
	areaKey    string
	food       []geom.Point3
	noResource *Areas
}

// Open loads both lists from store. Missing lists start empty.
func Open(store PointStore, foodKey, areaKey string) (*Base, error) {
	food, err := store.LoadPoints(foodKey)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", foodKey, err)
	}
	areas, err := store.LoadPoints(areaKey)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", areaKey, err)
	}
	slog.Info("knowledge base loaded", "food_locations", len(food), "no_resource_areas", len(areas))
	return &Base{
		store:      store,
		foodKey:    foodKey,
		areaKey:    areaKey,
		food:       food,
		noResource: NewAreas(areas),
	}, nil
}

// AddFoodLocation appends a discovered target location and persists the list.
func (b *Base) AddFoodLocation(p geom.Point3) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.food = append(b.food, p)
	if err := b.store.SavePoints(b.foodKey, b.food); err != nil {
		return fmt.Errorf("save %s: %w", b.foodKey, err)
	}
	return nil
}

// BestFoodLocation returns the most recently recorded location. With none
// recorded it returns geom.Zero and false.
func (b *Base) BestFoodLocation() (geom.Point3, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.food) == 0 {
		return geom.Zero, false
	}
	return b.food[len(b.food)-1], true
}

// FoodLocations returns a copy of the recorded locations, oldest first.
func (b *Base) FoodLocations() []geom.Point3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]geom.Point3(nil), b.food...)
}

// AddNoResourceArea appends a barren-area center and persists the list.
func (b *Base) AddNoResourceArea(p geom.Point3) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.noResource.Add(p)
	return b.saveAreas()
}

// RemoveNoResourceNear deletes every barren-area center within radius of p
// and persists the list.
func (b *Base) RemoveNoResourceNear(p geom.Point3, radius float64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.noResource.RemoveNear(p, radius)
	return n, b.saveAreas()
}

// InNoResourceArea reports whether p lies within radius of a recorded center.
func (b *Base) InNoResourceArea(p geom.Point3, radius float64) bool {
	return b.noResource.Contains(p, radius)
}

// NoResourceAreas returns a copy of the recorded centers.
func (b *Base) NoResourceAreas() []geom.Point3 {
	return b.noResource.Points()
}

func (b *Base) saveAreas() error {
	if err := b.store.SavePoints(b.areaKey, b.noResource.Points()); err != nil {
		return fmt.Errorf("save %s: %w", b.areaKey, err)
	}
	return nil
}
