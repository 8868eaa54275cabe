package capture

import (
	"sync"
	"time"
)

// FPSCounter tracks a rolling frames-per-second figure over a fixed
// window. Safe for concurrent use.
type FPSCounter struct {
	mu     sync.Mutex
	window time.Duration
	ticks  []time.Time
}

// NewFPSCounter creates a counter with the given averaging window.
// A window of 0 means one second.
func NewFPSCounter(window time.Duration) *FPSCounter {
	if window <= 0 {
		window = time.Second
	}
	return &FPSCounter{window: window}
}

// Tick records a frame at the current time.
func (f *FPSCounter) Tick() {
	f.tickAt(time.Now())
}

// FPS returns the frame rate over the window.
func (f *FPSCounter) FPS() float64 {
	return f.fpsAt(time.Now())
}

func (f *FPSCounter) tickAt(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, now)
	f.trim(now)
}

func (f *FPSCounter) fpsAt(now time.Time) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trim(now)
	return float64(len(f.ticks)) / f.window.Seconds()
}

// trim drops ticks older than the window. Callers hold the lock.
func (f *FPSCounter) trim(now time.Time) {
	cutoff := now.Add(-f.window)
	i := 0
	for i < len(f.ticks) && f.ticks[i].Before(cutoff) {
		i++
	}
	f.ticks = f.ticks[i:]
}
