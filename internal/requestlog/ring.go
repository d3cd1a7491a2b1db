// Package requestlog keeps the most recent handled requests in a bounded,
// concurrency-safe ring.
package requestlog

import (
	"math"
	"sync"

	"mensajeria/internal/domain"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 1000

// Ring is a fixed-capacity FIFO of request logs.
type Ring struct {
	mu      sync.Mutex
	entries []domain.RequestLog
	start   int
	size    int
	seq     uint64
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{entries: make([]domain.RequestLog, capacity)}
}

// Append stores entry, evicting the oldest one when full. The assigned
// sequence number is returned.
func (r *Ring) Append(entry domain.RequestLog) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	entry.Seq = r.seq

	capacity := len(r.entries)
	if r.size < capacity {
		r.entries[(r.start+r.size)%capacity] = entry
		r.size++
	} else {
		r.entries[r.start] = entry
		r.start = (r.start + 1) % capacity
	}
	return entry.Seq
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *Ring) Capacity() int {
	return len(r.entries)
}

// Recent returns up to limit of the newest entries, oldest first. A limit
// that is not smaller than the current size returns everything.
func (r *Ring) Recent(limit int) []domain.RequestLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.size
	if limit >= 0 && limit < n {
		n = limit
	}
	return r.tailLocked(n)
}

// Since returns the entries with a sequence number greater than seq that
// are still held, oldest first.
func (r *Ring) Since(seq uint64) []domain.RequestLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq >= r.seq {
		return nil
	}
	n := r.seq - seq
	if n > uint64(r.size) {
		n = uint64(r.size)
	}
	return r.tailLocked(int(n))
}

func (r *Ring) tailLocked(n int) []domain.RequestLog {
	out := make([]domain.RequestLog, n)
	capacity := len(r.entries)
	offset := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.entries[(r.start+offset+i)%capacity]
	}
	return out
}

// Stats aggregates the entries currently held.
type Stats struct {
	TotalRequests         int            `json:"total_requests"`
	RequestsByMethod      map[string]int `json:"requests_by_method"`
	RequestsByStatus      map[int]int    `json:"requests_by_status"`
	AverageResponseTimeMs float64        `json:"average_response_time_ms"`
}

func (r *Ring) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		TotalRequests:    r.size,
		RequestsByMethod: make(map[string]int),
		RequestsByStatus: make(map[int]int),
	}
	if r.size == 0 {
		return stats
	}

	var total float64
	for _, e := range r.tailLocked(r.size) {
		stats.RequestsByMethod[e.Method]++
		stats.RequestsByStatus[e.StatusCode]++
		total += e.ProcessingTimeMs
	}
	stats.AverageResponseTimeMs = math.Round(total/float64(r.size)*100) / 100
	return stats
}
