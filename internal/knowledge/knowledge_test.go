package knowledge_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/forager/internal/geom"
	"github.com/talgya/forager/internal/knowledge"
)

type memStore struct {
	lists  map[string][]geom.Point3
	saves  int
	broken bool
}

func newMemStore() *memStore {
	return &memStore{lists: map[string][]geom.Point3{}}
}

func (m *memStore) LoadPoints(key string) ([]geom.Point3, error) {
	return append([]geom.Point3(nil), m.lists[key]...), nil
}

func (m *memStore) SavePoints(key string, pts []geom.Point3) error {
	if m.broken {
		return errors.New("disk full")
	}
	m.saves++
	m.lists[key] = append([]geom.Point3(nil), pts...)
	return nil
}

func TestAreasMembershipAndRemoval(t *testing.T) {
	const radius = 5.0
	areas := knowledge.NewAreas(nil)
	center := geom.Pt(10, 0, 10)
	areas.Add(center)

	covered := []geom.Point3{
		center,
		geom.Pt(14.9, 0, 10),
		geom.Pt(10, 0, 5.1),
		geom.Pt(12, 0, 12),
	}
	for _, p := range covered {
		assert.True(t, areas.Contains(p, radius), "%v", p)
	}
	assert.False(t, areas.Contains(geom.Pt(15.1, 0, 10), radius))

	assert.Equal(t, 1, areas.RemoveNear(geom.Pt(11, 0, 11), radius))
	for _, p := range covered {
		assert.False(t, areas.Contains(p, radius), "%v", p)
	}
	assert.Zero(t, areas.Len())
}

func TestAreasRemoveNearKeepsOthersInOrder(t *testing.T) {
	areas := knowledge.NewAreas([]geom.Point3{
		geom.Pt(0, 0, 0), geom.Pt(50, 0, 0), geom.Pt(1, 0, 0), geom.Pt(60, 0, 0),
	})
	assert.Equal(t, 2, areas.RemoveNear(geom.Zero, 5))
	assert.Equal(t, []geom.Point3{geom.Pt(50, 0, 0), geom.Pt(60, 0, 0)}, areas.Points())
}

func TestBaseColdStart(t *testing.T) {
	kb, err := knowledge.Open(newMemStore(), knowledge.FoodKey, knowledge.NoResourceKey)
	require.NoError(t, err)

	best, ok := kb.BestFoodLocation()
	assert.False(t, ok)
	assert.Equal(t, geom.Zero, best)
	assert.Empty(t, kb.FoodLocations())
	assert.Empty(t, kb.NoResourceAreas())
}

func TestBaseBestIsMostRecent(t *testing.T) {
	store := newMemStore()
	kb, err := knowledge.Open(store, knowledge.FoodKey, knowledge.NoResourceKey)
	require.NoError(t, err)

	require.NoError(t, kb.AddFoodLocation(geom.Pt(1, 0, 1)))
	require.NoError(t, kb.AddFoodLocation(geom.Pt(7, 0, 3)))

	best, ok := kb.BestFoodLocation()
	assert.True(t, ok)
	assert.Equal(t, geom.Pt(7, 0, 3), best)
	// Each mutation rewrites the whole list.
	assert.Equal(t, []geom.Point3{geom.Pt(1, 0, 1), geom.Pt(7, 0, 3)}, store.lists[knowledge.FoodKey])
	assert.Equal(t, 2, store.saves)
}

func TestBaseNoResourcePersistence(t *testing.T) {
	store := newMemStore()
	store.lists[knowledge.NoResourceKey] = []geom.Point3{geom.Pt(30, 0, 30)}
	kb, err := knowledge.Open(store, knowledge.FoodKey, knowledge.NoResourceKey)
	require.NoError(t, err)

	assert.True(t, kb.InNoResourceArea(geom.Pt(31, 0, 31), 5))
	require.NoError(t, kb.AddNoResourceArea(geom.Pt(0, 0, 0)))
	assert.Len(t, store.lists[knowledge.NoResourceKey], 2)

	n, err := kb.RemoveNoResourceNear(geom.Pt(29, 0, 30), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []geom.Point3{geom.Zero}, store.lists[knowledge.NoResourceKey])
	assert.False(t, kb.InNoResourceArea(geom.Pt(31, 0, 31), 5))
}

func TestBaseSurfacesWriteFailure(t *testing.T) {
	store := newMemStore()
	kb, err := knowledge.Open(store, knowledge.FoodKey, knowledge.NoResourceKey)
	require.NoError(t, err)

	store.broken = true
	assert.Error(t, kb.AddFoodLocation(geom.Pt(1, 0, 1)))
	// The in-memory list still has the entry.
	best, ok := kb.BestFoodLocation()
	assert.True(t, ok)
	assert.Equal(t, geom.Pt(1, 0, 1), best)
}
