package endpoint

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// minFlushDelay bounds how often the pending queue is rechecked.
const minFlushDelay = 10 * time.Millisecond

// RateLimiter throttles physical change reports with a token bucket.
//
// A report that finds no token waits in a per-endpoint slot. A newer report
// for the same endpoint replaces the waiting one, which is dropped. Slots are
// released in arrival order as tokens return. Emission happens under the
// limiter's lock, so emit must not block.
type RateLimiter struct {
	limiter *rate.Limiter
	emit    func(ChangeReport)

	mu      sync.Mutex
	pending map[string]ChangeReport
	order   []string
	timer   *time.Timer
	dropped int
	closed  bool

	onDrop func(endpointID string)
}

// NewRateLimiter creates a limiter allowing eventsPerSecond reports with the
// given burst. A non-positive rate disables throttling.
func NewRateLimiter(eventsPerSecond float64, burst int, emit func(ChangeReport)) *RateLimiter {
	limit := rate.Limit(eventsPerSecond)
	if eventsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		emit:    emit,
		pending: make(map[string]ChangeReport),
	}
}

// SetOnDrop registers a callback for dropped reports.
func (r *RateLimiter) SetOnDrop(fn func(endpointID string)) {
	r.mu.Lock()
	r.onDrop = fn
	r.mu.Unlock()
}

// Submit emits report now if a token is available, otherwise parks it in
// the endpoint's slot.
func (r *RateLimiter) Submit(report ChangeReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	if _, waiting := r.pending[report.EndpointID]; waiting {
		r.pending[report.EndpointID] = report
		r.dropLocked(report.EndpointID)
		return
	}

	// Reports may only overtake the queue when it is empty.
	if len(r.order) == 0 && r.limiter.Allow() {
		r.emit(report)
		return
	}

	r.pending[report.EndpointID] = report
	r.order = append(r.order, report.EndpointID)
	r.scheduleLocked()
}

// SubmitNow emits report immediately, bypassing the bucket. A report still
// waiting for the same endpoint is older and is dropped.
func (r *RateLimiter) SubmitNow(report ChangeReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	if _, waiting := r.pending[report.EndpointID]; waiting {
		delete(r.pending, report.EndpointID)
		r.removeFromOrderLocked(report.EndpointID)
		r.dropLocked(report.EndpointID)
	}
	r.emit(report)
}

// Pending returns the number of parked reports.
func (r *RateLimiter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Dropped returns the number of reports replaced or superseded so far.
func (r *RateLimiter) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close discards parked reports and stops the flush timer.
func (r *RateLimiter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = make(map[string]ChangeReport)
	r.order = nil
}

func (r *RateLimiter) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.timer = nil
	if r.closed {
		return
	}

	for len(r.order) > 0 && r.limiter.Allow() {
		id := r.order[0]
		r.order = r.order[1:]
		report := r.pending[id]
		delete(r.pending, id)
		r.emit(report)
	}

	if len(r.order) > 0 {
		r.scheduleLocked()
	}
}

// scheduleLocked arms the flush timer for when the next token is due.
func (r *RateLimiter) scheduleLocked() {
	if r.timer != nil {
		return
	}
	reservation := r.limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	if delay < minFlushDelay {
		delay = minFlushDelay
	}
	r.timer = time.AfterFunc(delay, r.flush)
}

func (r *RateLimiter) removeFromOrderLocked(id string) {
	for i, queued := range r.order {
		if queued == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *RateLimiter) dropLocked(endpointID string) {
	r.dropped++
	if r.onDrop != nil {
		r.onDrop(endpointID)
	}
}
