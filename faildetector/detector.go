// Package faildetector implements an accrual failure detector: instead of a
// binary alive/dead verdict it tracks the arrival intervals of heartbeat
// increases per member and derives a suspicion level (phi) from how long the
// current silence is compared to the intervals seen so far. The detector is
// fed from gossip merges, so "arrival" means any exchange that carried a
// higher heartbeat for the member, no matter how many hops it travelled.
package faildetector

import (
	"sync"
	"time"
)

type Detector[K comparable] struct {
	mu      sync.Mutex
	windows map[K]*arrivalWindow
	opts    Options
}

func New[K comparable](opts Options) *Detector[K] {
	return &Detector[K]{
		windows: make(map[K]*arrivalWindow),
		opts:    opts,
	}
}

// Observe records a heartbeat value seen for the member. Stale and repeated
// values carry no evidence and are ignored; a higher value than previously
// seen records the mean interval since the last increase.
func (d *Detector[K]) Observe(id K, heartbeat uint64, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	window, ok := d.windows[id]
	if !ok {
		window = newArrivalWindow(d.opts.SuspicionWindow, d.opts.SampleSize)
		d.windows[id] = window
	}

	window.Observe(heartbeat, at)
}

// Phi returns the current suspicion level for the member. Members never
// observed start with a window seeded at the given time, so a member that
// stays silent from the very beginning still accrues suspicion.
func (d *Detector[K]) Phi(id K, at time.Time) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	window, ok := d.windows[id]
	if !ok {
		window = newArrivalWindow(d.opts.SuspicionWindow, d.opts.SampleSize)
		window.Observe(0, at)
		d.windows[id] = window
	}

	return window.Phi(at)
}

// Suspect returns true once the suspicion level crosses the configured
// threshold.
func (d *Detector[K]) Suspect(id K, at time.Time) bool {
	return d.Phi(id, at) >= d.opts.PhiThreshold
}

// Forget discards all state about the member.
func (d *Detector[K]) Forget(id K) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.windows, id)
}

// arrivalWindow tracks heartbeat arrival intervals in a circular buffer.
type arrivalWindow struct {
	intervals []int64
	index     int
	full      bool
	sum       int64

	lastHeartbeat uint64
	lastArrival   time.Time

	bootstrapInterval time.Duration
}

func newArrivalWindow(bootstrapInterval time.Duration, sampleSize int) *arrivalWindow {
	return &arrivalWindow{
		intervals:         make([]int64, sampleSize),
		bootstrapInterval: bootstrapInterval,
	}
}

func (w *arrivalWindow) add(interval int64) {
	if w.index == len(w.intervals) {
		w.index = 0
		w.full = true
	}

	if w.full {
		w.sum -= w.intervals[w.index]
	}

	w.intervals[w.index] = interval
	w.index++
	w.sum += interval
}

func (w *arrivalWindow) size() int {
	if w.full {
		return len(w.intervals)
	}

	return w.index
}

func (w *arrivalWindow) mean() float64 {
	if w.size() == 0 {
		return 0
	}

	return float64(w.sum) / float64(w.size())
}

func (w *arrivalWindow) Observe(heartbeat uint64, at time.Time) {
	if w.lastArrival.IsZero() {
		// The first observation seeds the window with the bootstrap
		// interval, so a member stays trusted until the suspicion window
		// has passed at least once without news.
		w.add(w.bootstrapInterval.Nanoseconds())
		w.lastHeartbeat = heartbeat
		w.lastArrival = at

		return
	}

	if heartbeat <= w.lastHeartbeat || !at.After(w.lastArrival) {
		return
	}

	// A single exchange may carry several missed heartbeat increments at
	// once. Attribute the elapsed time evenly across them.
	count := heartbeat - w.lastHeartbeat
	if count > uint64(len(w.intervals)) {
		count = uint64(len(w.intervals))
	}

	interval := at.Sub(w.lastArrival).Nanoseconds() / int64(count)
	for i := uint64(0); i < count; i++ {
		w.add(interval)
	}

	w.lastHeartbeat = heartbeat
	w.lastArrival = at
}

// Phi is the ratio between the current silence and the mean arrival
// interval. The longer the silence relative to the history, the higher the
// value.
func (w *arrivalWindow) Phi(at time.Time) float64 {
	mean := w.mean()
	if w.lastArrival.IsZero() || mean <= 0 {
		return 0
	}

	return float64(at.Sub(w.lastArrival).Nanoseconds()) / mean
}
