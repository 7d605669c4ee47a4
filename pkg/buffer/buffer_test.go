package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_KeepsLatest(t *testing.T) {
	r := NewRing[int](3)
	assert.Equal(t, 3, r.Cap())
	assert.Empty(t, r.Items())

	for i := 1; i <= 3; i++ {
		_, evicted := r.Push(i)
		assert.False(t, evicted)
	}
	assert.Equal(t, []int{1, 2, 3}, r.Items())

	old, evicted := r.Push(4)
	require.True(t, evicted)
	assert.Equal(t, 1, old)

	r.Push(5)
	assert.Equal(t, []int{3, 4, 5}, r.Items())
	assert.Equal(t, 3, r.Len())
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := NewRing[string](0)
	assert.Equal(t, 1, r.Cap())

	r.Push("a")
	old, evicted := r.Push("b")
	assert.True(t, evicted)
	assert.Equal(t, "a", old)
	assert.Equal(t, []string{"b"}, r.Items())
}

func TestRing_Reset(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Reset()

	assert.Zero(t, r.Len())
	assert.Empty(t, r.Items())

	r.Push(7)
	assert.Equal(t, []int{7}, r.Items())
}

func TestWindow_Mean(t *testing.T) {
	w := NewWindow(3)
	assert.Zero(t, w.Mean())

	w.Add(10)
	w.Add(20)
	assert.InDelta(t, 15.0, w.Mean(), 1e-9)

	w.Add(30)
	w.Add(60) // drops 10
	assert.Equal(t, []float64{20, 30, 60}, w.Samples())
	assert.InDelta(t, 110.0/3, w.Mean(), 1e-9)

	w.Reset()
	assert.Zero(t, w.Len())
	assert.Zero(t, w.Mean())
}

func TestWindow_ConcurrentAdds(t *testing.T) {
	w := NewWindow(100)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				w.Add(5)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, w.Len())
	assert.InDelta(t, 5.0, w.Mean(), 1e-9)
}
