package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPool_AllocatesDistinctIDs(t *testing.T) {
	a := NewPool("a", 1, true, false)
	b := NewPool("b", 1, true, false)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewGroup_ClampsNonPositiveConcurrencyToOne(t *testing.T) {
	assert.Equal(t, 1, NewGroup("g", 0).Concurrency)
	assert.Equal(t, 1, NewGroup("g", -3).Concurrency)
	assert.Equal(t, 4, NewGroup("g", 4).Concurrency)
}

func TestMainPool_IsMainThreadAffinitySentinel(t *testing.T) {
	assert.Equal(t, PoolID(0), MainPool.ID)
	assert.Equal(t, 0, MainPool.Concurrency)
	assert.True(t, MainPool.CountsForIdle)
}
