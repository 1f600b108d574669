package usecase

import (
	"math"
	"time"
)

type tick struct {
	price  float64
	volume float64
	ts     time.Time
}

// tickWindow keeps the most recent ticks for one symbol and derives the
// stage-2 metrics from them. All derived values are NaN until at least two
// ticks are present, which fails stage 2 closed.
type tickWindow struct {
	ticks []tick
	size  int
}

type derivedMetrics struct {
	atr       float64
	velocity  float64
	surge     float64
	proximity float64
}

func newTickWindow(size int) *tickWindow {
	return &tickWindow{size: size}
}

func (w *tickWindow) push(price, volume float64, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	if len(w.ticks) >= w.size {
		w.ticks = append(w.ticks[1:], tick{price: price, volume: volume, ts: ts})
		return
	}
	w.ticks = append(w.ticks, tick{price: price, volume: volume, ts: ts})
}

func (w *tickWindow) derive() derivedMetrics {
	nan := math.NaN()
	d := derivedMetrics{atr: nan, velocity: nan, surge: nan, proximity: nan}
	n := len(w.ticks)
	if n < 2 {
		return d
	}

	first, last := w.ticks[0], w.ticks[n-1]

	// relative true-range proxy: mean absolute tick-to-tick move
	var trSum float64
	ranges := 0
	for i := 1; i < n; i++ {
		prev := w.ticks[i-1].price
		if prev <= 0 {
			continue
		}
		trSum += math.Abs(w.ticks[i].price-prev) / prev
		ranges++
	}
	if ranges > 0 {
		d.atr = trSum / float64(ranges)
	}

	// relative price change per second across the window
	if elapsed := last.ts.Sub(first.ts).Seconds(); elapsed > 0 && first.price > 0 {
		d.velocity = (last.price - first.price) / first.price / elapsed
	}

	// current volume against the mean of the preceding ticks
	var volSum float64
	for i := 0; i < n-1; i++ {
		volSum += w.ticks[i].volume
	}
	if mean := volSum / float64(n-1); mean > 0 {
		d.surge = last.volume / mean
	}

	// distance below the window high, as a fraction of the high
	high := w.ticks[0].price
	for _, t := range w.ticks[1:] {
		if t.price > high {
			high = t.price
		}
	}
	if high > 0 {
		d.proximity = (high - last.price) / high
	}

	return d
}
