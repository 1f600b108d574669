package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"MarketPulse/internal/domain/repository"
)

// Config bounds how often one identifier may proceed across three nested
// windows, plus queued admission under burst.
type Config struct {
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute" default:"60"`
	MaxRequestsPerHour   int           `yaml:"max_requests_per_hour" default:"1000"`
	MaxRequestsPerDay    int           `yaml:"max_requests_per_day" default:"10000"`
	BurstLimit           int           `yaml:"burst_limit" default:"5"`
	RetryAfter           time.Duration `yaml:"retry_after" default:"1s"`
}

type counters struct {
	minute, hour, day int
	minuteMark        time.Time
	hourMark          time.Time
	dayMark           time.Time
}

type slotRequest struct {
	id   string
	ctx  context.Context
	done chan struct{}
}

// Limiter tracks per-identifier request counts over minute/hour/day windows.
// Counters only grow between sweeps; a background sweep (every sweepInterval)
// resets a counter once its calendar bucket has advanced, so the effective
// limit is per bucket rounded up to the sweep interval, not a sliding window.
type Limiter struct {
	mu       sync.Mutex
	cfg      Config
	tracked  map[string]*counters
	queue    []*slotRequest
	draining atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once

	metrics repository.Metrics

	// overridable for tests
	now           func() time.Time
	sweepInterval time.Duration
	batchPause    time.Duration
}

// Option configures Limiter.
type Option func(*Limiter)

// WithMetrics sets the metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// New creates a limiter. Start must be called for window sweeps to run.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:           cfg,
		tracked:       make(map[string]*counters),
		stopCh:        make(chan struct{}),
		now:           time.Now,
		sweepInterval: time.Minute,
		batchPause:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckLimit reports whether identifier may proceed now. Unseen identifiers
// start with zeroed counters and always pass. A denial does not increment any
// counter; an allowance increments all three.
func (l *Limiter) CheckLimit(identifier string) bool {
	now := l.now()

	l.mu.Lock()
	c, ok := l.tracked[identifier]
	if !ok {
		c = &counters{
			minuteMark: now.Truncate(time.Minute),
			hourMark:   now.Truncate(time.Hour),
			dayMark:    dayBucket(now),
		}
		l.tracked[identifier] = c
	}
	allowed := c.minute < l.cfg.MaxRequestsPerMinute &&
		c.hour < l.cfg.MaxRequestsPerHour &&
		c.day < l.cfg.MaxRequestsPerDay
	if allowed {
		c.minute++
		c.hour++
		c.day++
	}
	l.mu.Unlock()

	if l.metrics != nil {
		if allowed {
			l.metrics.RecordRateLimit("allowed")
		} else {
			l.metrics.RecordRateLimit("denied")
		}
	}
	return allowed
}

// WaitForSlot blocks until the identifier is admitted or ctx is done. Queued
// requests are drained in BurstLimit batches with a fixed pause between
// batches by a single drain loop; denied requests requeue themselves after
// RetryAfter.
func (l *Limiter) WaitForSlot(ctx context.Context, identifier string) error {
	req := &slotRequest{id: identifier, ctx: ctx, done: make(chan struct{})}
	l.enqueue(req)
	l.kickDrain()

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) enqueue(req *slotRequest) {
	l.mu.Lock()
	l.queue = append(l.queue, req)
	l.mu.Unlock()
}

func (l *Limiter) dequeueBatch() []*slotRequest {
	n := l.cfg.BurstLimit
	if n <= 0 {
		n = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	if n > len(l.queue) {
		n = len(l.queue)
	}
	batch := l.queue[:n]
	l.queue = append([]*slotRequest(nil), l.queue[n:]...)
	return batch
}

func (l *Limiter) queueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// kickDrain starts the drain loop unless one is already running. Calls made
// while a drain is active join the existing queue.
func (l *Limiter) kickDrain() {
	if !l.draining.CompareAndSwap(false, true) {
		return
	}
	go l.drain()
}

func (l *Limiter) drain() {
	for {
		batch := l.dequeueBatch()
		if len(batch) == 0 {
			l.draining.Store(false)
			// an enqueue may have raced the empty check; reclaim the flag
			// and keep draining rather than stranding the queue
			if l.queueLen() > 0 && l.draining.CompareAndSwap(false, true) {
				continue
			}
			return
		}

		var wg sync.WaitGroup
		for _, req := range batch {
			wg.Add(1)
			go func(r *slotRequest) {
				defer wg.Done()
				l.attempt(r)
			}(req)
		}
		wg.Wait()

		select {
		case <-time.After(l.batchPause):
		case <-l.stopCh:
			l.draining.Store(false)
			return
		}
	}
}

func (l *Limiter) attempt(r *slotRequest) {
	if r.ctx != nil && r.ctx.Err() != nil {
		return // caller gave up; drop instead of rescheduling forever
	}
	if l.CheckLimit(r.id) {
		close(r.done)
		return
	}
	retry := l.cfg.RetryAfter
	if retry <= 0 {
		retry = time.Second
	}
	time.AfterFunc(retry, func() {
		l.enqueue(r)
		l.kickDrain()
	})
}

// Start launches the background window sweep.
func (l *Limiter) Start() {
	go func() {
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stopCh:
				return
			case <-ticker.C:
				l.sweep(l.now())
			}
		}
	}()
}

// Stop halts the sweep and any running drain pause. Idempotent.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// sweep resets each counter whose calendar bucket has advanced since the
// counter was last reset.
func (l *Limiter) sweep(now time.Time) {
	minuteMark := now.Truncate(time.Minute)
	hourMark := now.Truncate(time.Hour)
	dayMark := dayBucket(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.tracked {
		if minuteMark.After(c.minuteMark) {
			c.minute = 0
			c.minuteMark = minuteMark
		}
		if hourMark.After(c.hourMark) {
			c.hour = 0
			c.hourMark = hourMark
		}
		if dayMark.After(c.dayMark) {
			c.day = 0
			c.dayMark = dayMark
		}
	}
}

func dayBucket(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Stats is the diagnostic view of the limiter.
type Stats struct {
	TrackedIdentifiers int  `json:"trackedIdentifiers"`
	QueueDepth         int  `json:"queueDepth"`
	DrainActive        bool `json:"drainActive"`
}

// Stats reports tracked identifier count, queue depth, and whether a burst
// drain is in flight.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	tracked := len(l.tracked)
	depth := len(l.queue)
	l.mu.Unlock()
	return Stats{
		TrackedIdentifiers: tracked,
		QueueDepth:         depth,
		DrainActive:        l.draining.Load(),
	}
}
