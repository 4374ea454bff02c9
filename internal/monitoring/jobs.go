package monitoring

import (
	"sort"
	"sync"
	"time"
)

// JobSummary reports the recent history of a background job.
type JobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	TotalRuns           uint64        `json:"total_runs"`
}

// JobTracker records background job runs for the maintenance readiness probe.
type JobTracker struct {
	mu    sync.RWMutex
	jobs  map[string]*JobSummary
	clock func() time.Time
}

// NewJobTracker constructs an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{
		jobs:  make(map[string]*JobSummary),
		clock: time.Now,
	}
}

// Record stores the outcome of one run. Any result other than "success" counts as a failure.
func (t *JobTracker) Record(job, result, message string, duration time.Duration) {
	if t == nil || job == "" {
		return
	}
	if duration < 0 {
		duration = 0
	}
	now := t.clock()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.jobs[job]
	if !ok {
		entry = &JobSummary{Job: job}
		t.jobs[job] = entry
	}

	entry.LastStatus = result
	entry.LastError = message
	entry.LastRunAt = now
	entry.LastDuration = duration
	entry.TotalRuns++

	if result == "success" {
		entry.ConsecutiveFailures = 0
		entry.LastSuccessAt = now
	} else {
		entry.ConsecutiveFailures++
	}
}

// Snapshot returns the recorded jobs sorted by name.
func (t *JobTracker) Snapshot() []JobSummary {
	if t == nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]JobSummary, 0, len(t.jobs))
	for _, entry := range t.jobs {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
