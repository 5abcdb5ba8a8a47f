package crawl

import (
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// queue is the session work queue and global dedup set. A target is accepted at most
// once per session, keyed by Target.Key; the first push wins. pop blocks until work is
// available and reports false once the queue is closed or no work is pending or in
// flight.
type queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  []models.Target
	seen     map[string]struct{}
	inflight int
	closed   bool

	queued     int
	duplicates int
	metrics    *scraper.Metrics
}

func newQueue(metrics *scraper.Metrics) *queue {
	q := &queue{seen: make(map[string]struct{}), metrics: metrics}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues t unless its key was seen before or the queue is closed.
func (q *queue) push(t models.Target) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	key := t.Key()
	if _, dup := q.seen[key]; dup {
		q.duplicates++
		return false
	}
	q.seen[key] = struct{}{}
	q.pending = append(q.pending, t)
	q.queued++
	q.metrics.SetQueueDepth(len(q.pending))
	q.cond.Signal()
	return true
}

func (q *queue) pop() (models.Target, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return models.Target{}, false
		}
		if len(q.pending) > 0 {
			t := q.pending[0]
			q.pending = q.pending[1:]
			q.inflight++
			q.metrics.SetQueueDepth(len(q.pending))
			return t, true
		}
		if q.inflight == 0 {
			q.closed = true
			q.cond.Broadcast()
			return models.Target{}, false
		}
		q.cond.Wait()
	}
}

// done marks a popped target as finished.
func (q *queue) done() {
	q.mu.Lock()
	q.inflight--
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// drain removes and returns targets that were never started.
func (q *queue) drain() []models.Target {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	q.metrics.SetQueueDepth(0)
	return out
}

func (q *queue) counts() (queued, duplicates int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queued, q.duplicates
}
