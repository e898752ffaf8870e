package learning_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/forager/internal/learning"
)

func TestGetMaterializesDefault(t *testing.T) {
	table := learning.NewQTable()
	assert.Equal(t, 0, table.Len())

	assert.Zero(t, table.Get(4, 2))
	assert.Equal(t, 1, table.Len())

	snap := table.Snapshot()
	v, ok := snap[learning.Key{State: 4, Action: 2}]
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestMaxQMaterializesRow(t *testing.T) {
	table := learning.NewQTable()
	table.Set(1, 3, -0.5)
	assert.Zero(t, table.MaxQ(1, 8))
	assert.Equal(t, 8, table.Len())

	table.Set(2, 0, -1)
	table.Set(2, 1, -2)
	assert.Equal(t, -1.0, table.MaxQ(2, 2))
}

func TestFromMapCopies(t *testing.T) {
	src := map[learning.Key]float64{{State: 0, Action: 1}: 0.5}
	table := learning.FromMap(src)
	src[learning.Key{State: 0, Action: 1}] = 9
	assert.Equal(t, 0.5, table.Get(0, 1))
}

func TestKeysOrdered(t *testing.T) {
	table := learning.NewQTable()
	table.Set(2, 3, 1)
	table.Set(0, 1, 1)
	table.Set(2, 0, 1)
	assert.Equal(t, []learning.Key{{State: 0, Action: 1}, {State: 2, Action: 0}, {State: 2, Action: 3}}, table.Keys())
}

func TestLearnSerializesConcurrentUpdates(t *testing.T) {
	table := learning.NewQTable()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				table.Learn(0, j%4, 1, 1, 4, 0.1, 0.95)
			}
		}()
	}
	wg.Wait()
	// Rows for states 0 and 1 are fully materialized.
	assert.Equal(t, 8, table.Len())
	for a := 0; a < 4; a++ {
		assert.Greater(t, table.Get(0, a), 0.0)
	}
}
