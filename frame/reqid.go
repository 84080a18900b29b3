package frame

import (
	"sync"
	"time"
)

// RequestIDs hands out the req_id values attached to outbound messages.
// The provider expects them to increase linearly over a connection; the
// sequence is seeded from the wall clock in milliseconds so a reconnect
// never reuses an id from an earlier connection.
// Thread-safe via mutex.
type RequestIDs struct {
	mu   sync.Mutex
	next int64
}

// NewRequestIDs creates a counter seeded from now.
func NewRequestIDs(now time.Time) *RequestIDs {
	return &RequestIDs{next: now.UnixMilli()}
}

// Reset reseeds the counter for a new connection. It never moves the
// counter backwards.
func (r *RequestIDs) Reset(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ms := now.UnixMilli(); ms > r.next {
		r.next = ms
	}
}

// Next returns the current id and advances the counter.
func (r *RequestIDs) Next() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	return id
}

// Peek returns the id the next call to Next will return.
func (r *RequestIDs) Peek() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}
