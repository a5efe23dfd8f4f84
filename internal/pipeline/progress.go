package pipeline

import (
	"sync"
	"time"
)

// Progress tracks completed/failed counts for a run. It is observational
// only: nothing reads it to make scheduling decisions. Observe is called
// from the collector goroutine; Snapshot may be called from anywhere.
type Progress struct {
	mu        sync.Mutex
	completed int
	failed    int
	total     int
	start     time.Time
}

// NewProgress starts the clock for a run over total units.
func NewProgress(total int) *Progress {
	return &Progress{total: total, start: time.Now()}
}

// Observe records one terminal outcome.
func (p *Progress) Observe(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o.Succeeded() {
		p.completed++
	} else {
		p.failed++
	}
}

// Snapshot is a point-in-time view of run progress.
type Snapshot struct {
	Completed int
	Failed    int
	Total     int
	Elapsed   time.Duration
}

// Snapshot returns the current counters and elapsed time.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Completed: p.completed,
		Failed:    p.failed,
		Total:     p.total,
		Elapsed:   time.Since(p.start),
	}
}

// Done returns the number of units that reached a terminal state.
func (s Snapshot) Done() int { return s.Completed + s.Failed }

// Percent returns completion as 0-100.
func (s Snapshot) Percent() float64 {
	if s.Total == 0 {
		return 100
	}
	return float64(s.Done()) * 100 / float64(s.Total)
}

// Rate returns terminal outcomes per second since the run started.
func (s Snapshot) Rate() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Done()) / secs
}

// Remaining estimates time to completion from the current rate; zero when
// the rate is unknown or the run is done.
func (s Snapshot) Remaining() time.Duration {
	rate := s.Rate()
	left := s.Total - s.Done()
	if rate <= 0 || left <= 0 {
		return 0
	}
	return time.Duration(float64(left)/rate) * time.Second
}
