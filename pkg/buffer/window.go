package buffer

import "sync"

// Window is a goroutine-safe sliding window of float64 samples.
type Window struct {
	mu   sync.Mutex
	ring *Ring[float64]
	sum  float64
}

// NewWindow returns a window averaging over the last size samples.
func NewWindow(size int) *Window {
	return &Window{ring: NewRing[float64](size)}
}

// Add records a sample, dropping the oldest once the window is full.
func (w *Window) Add(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if old, evicted := w.ring.Push(v); evicted {
		w.sum -= old
	}
	w.sum += v
}

// Mean returns the average of the samples in the window, or 0 when empty.
func (w *Window) Mean() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ring.Len() == 0 {
		return 0
	}
	return w.sum / float64(w.ring.Len())
}

// Samples returns a copy of the window, oldest first.
func (w *Window) Samples() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ring.Items()
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ring.Len()
}

func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ring.Reset()
	w.sum = 0
}
