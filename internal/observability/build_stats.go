// Package observability provides build statistics tracking for migration
// pipeline monitoring and reporting.
package observability

import (
	"sort"
	"sync"
	"time"
)

// BuildStats tracks per-stage timings and object counts for one migration
// build. Safe for concurrent use, though builds normally run sequentially.
type BuildStats struct {
	mu     sync.RWMutex
	stages map[string]*StageStats
	counts map[string]int
	start  time.Time
}

// StageStats holds the timing record for one pipeline stage.
type StageStats struct {
	Stage    string
	Duration time.Duration
	Ran      time.Time
}

// NewBuildStats creates a statistics tracker anchored at the current time.
func NewBuildStats() *BuildStats {
	return &BuildStats{
		stages: make(map[string]*StageStats),
		counts: make(map[string]int),
		start:  time.Now(),
	}
}

// RecordStage records the duration of one pipeline stage. Re-recording a
// stage overwrites the previous entry.
func (b *BuildStats) RecordStage(stage string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stages[stage] = &StageStats{Stage: stage, Duration: d, Ran: time.Now()}
}

// SetCount records a named counter (objects parsed, operations emitted,
// operations after optimization, plan steps).
func (b *BuildStats) SetCount(name string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[name] = n
}

// Count returns a named counter, or zero when unset.
func (b *BuildStats) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counts[name]
}

// StageDuration returns the recorded duration for a stage, or zero.
func (b *BuildStats) StageDuration(stage string) time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.stages[stage]; ok {
		return s.Duration
	}
	return 0
}

// Stages returns all recorded stage timings sorted by when they ran.
func (b *BuildStats) Stages() []StageStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]StageStats, 0, len(b.stages))
	for _, s := range b.stages {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ran.Before(out[j].Ran) })
	return out
}

// Elapsed returns the wall time since the tracker was created.
func (b *BuildStats) Elapsed() time.Duration {
	return time.Since(b.start)
}
