// Package metrics tracks raw execution counters and computes derived
// performance figures for the emulator.
package metrics

import (
	"sync"
	"time"
)

// pageSize is the granularity of the memory-access histogram.
const pageSize = 4096

// maxSnapshots caps the detailed-tracking snapshot list.
const maxSnapshots = 1024

// A Snapshot is a point-in-time copy of the raw counters.
type Snapshot struct {
	Timestamp            float64 `json:"timestamp"`
	InstructionsExecuted uint64  `json:"instructions_executed"`
	MemoryAccesses       uint64  `json:"memory_accesses"`
	CacheHits            uint64  `json:"cache_hits"`
	CacheMisses          uint64  `json:"cache_misses"`
	ContextSwitches      uint64  `json:"context_switches"`
	ThreadCount          int     `json:"thread_count"`
	ActiveProcessors     int     `json:"active_processors"`
}

// A LatencyRecord is one raw (operation, latency) measurement.
type LatencyRecord struct {
	Operation string
	Latency   float64
}

// PerformanceMetrics maintains execution counters and derives rates from
// them on demand. Derived values are never cached.
type PerformanceMetrics struct {
	lock sync.Mutex

	detailedTracking bool

	instructionsExecuted uint64
	memoryAccesses       uint64
	cacheHits            uint64
	cacheMisses          uint64
	contextSwitches      uint64
	cycles               uint64

	startTime     time.Time
	executionTime float64

	snapshots            []Snapshot
	instructionBreakdown map[string]uint64
	memoryHistogram      map[uint64]uint64
	latencyRecords       []LatencyRecord

	now func() time.Time
}

// NewPerformanceMetrics creates a metrics tracker with detailed tracking
// off.
func NewPerformanceMetrics() *PerformanceMetrics {
	return newMetrics(false)
}

// NewDetailedPerformanceMetrics creates a metrics tracker that additionally
// records snapshots, an instruction breakdown, a page-granularity memory
// histogram, and raw latency measurements.
func NewDetailedPerformanceMetrics() *PerformanceMetrics {
	return newMetrics(true)
}

func newMetrics(detailed bool) *PerformanceMetrics {
	m := &PerformanceMetrics{
		detailedTracking: detailed,
		startTime:        time.Now(),
		now:              time.Now,
	}

	if detailed {
		m.instructionBreakdown = make(map[string]uint64)
		m.memoryHistogram = make(map[uint64]uint64)
	}

	return m
}

// StartMeasurement marks the start of the wall-clock measurement window.
func (m *PerformanceMetrics) StartMeasurement() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.startTime = m.now()
}

// EndMeasurement closes the measurement window and fixes the execution
// time.
func (m *PerformanceMetrics) EndMeasurement() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.executionTime = m.now().Sub(m.startTime).Seconds()
}

// IncrementInstructions adds executed instructions, attributed to an
// instruction kind when detailed tracking is on.
func (m *PerformanceMetrics) IncrementInstructions(
	count uint64,
	instructionKind string,
) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.instructionsExecuted += count

	if m.detailedTracking && instructionKind != "" {
		m.instructionBreakdown[instructionKind] += count
	}
}

// IncrementMemoryAccesses adds memory accesses, attributed to the 4 KiB
// page of the address when detailed tracking is on.
func (m *PerformanceMetrics) IncrementMemoryAccesses(
	count uint64,
	address *uint64,
) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.memoryAccesses += count

	if m.detailedTracking && address != nil {
		m.memoryHistogram[*address/pageSize] += count
	}
}

// IncrementCacheHits adds cache hits.
func (m *PerformanceMetrics) IncrementCacheHits(count uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.cacheHits += count
}

// IncrementCacheMisses adds cache misses.
func (m *PerformanceMetrics) IncrementCacheMisses(count uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.cacheMisses += count
}

// IncrementContextSwitches adds context switches.
func (m *PerformanceMetrics) IncrementContextSwitches(count uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.contextSwitches += count
}

// IncrementCycles adds cycles.
func (m *PerformanceMetrics) IncrementCycles(count uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.cycles += count
}

// RecordLatency records a raw latency measurement. It does nothing unless
// detailed tracking is on.
func (m *PerformanceMetrics) RecordLatency(operation string, latency float64) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.detailedTracking {
		return
	}

	m.latencyRecords = append(m.latencyRecords, LatencyRecord{
		Operation: operation,
		Latency:   latency,
	})
}

// TakeSnapshot copies the current counters into the snapshot list. It does
// nothing unless detailed tracking is on. The oldest snapshot is evicted
// when the list is full.
func (m *PerformanceMetrics) TakeSnapshot(
	threadCount, activeProcessors int,
) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.detailedTracking {
		return
	}

	m.snapshots = append(m.snapshots, Snapshot{
		Timestamp:            m.now().Sub(m.startTime).Seconds(),
		InstructionsExecuted: m.instructionsExecuted,
		MemoryAccesses:       m.memoryAccesses,
		CacheHits:            m.cacheHits,
		CacheMisses:          m.cacheMisses,
		ContextSwitches:      m.contextSwitches,
		ThreadCount:          threadCount,
		ActiveProcessors:     activeProcessors,
	})

	if len(m.snapshots) > maxSnapshots {
		m.snapshots = m.snapshots[1:]
	}
}

// Snapshots returns a copy of the recorded snapshots.
func (m *PerformanceMetrics) Snapshots() []Snapshot {
	m.lock.Lock()
	defer m.lock.Unlock()

	out := make([]Snapshot, len(m.snapshots))
	copy(out, m.snapshots)

	return out
}

// InstructionsPerSecond derives the instruction rate over the measurement
// window. Zero when no window has been measured.
func (m *PerformanceMetrics) InstructionsPerSecond() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.instructionsPerSecond()
}

func (m *PerformanceMetrics) instructionsPerSecond() float64 {
	if m.executionTime <= 0 {
		return 0.0
	}
	return float64(m.instructionsExecuted) / m.executionTime
}

// MemoryAccessesPerSecond derives the memory access rate.
func (m *PerformanceMetrics) MemoryAccessesPerSecond() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.memoryAccessesPerSecond()
}

func (m *PerformanceMetrics) memoryAccessesPerSecond() float64 {
	if m.executionTime <= 0 {
		return 0.0
	}
	return float64(m.memoryAccesses) / m.executionTime
}

// CacheHitRate derives hits / (hits + misses), zero when no cache access
// was counted.
func (m *PerformanceMetrics) CacheHitRate() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.cacheHitRate()
}

func (m *PerformanceMetrics) cacheHitRate() float64 {
	total := m.cacheHits + m.cacheMisses
	if total == 0 {
		return 0.0
	}
	return float64(m.cacheHits) / float64(total)
}

// CacheMissRate derives 1 - hit rate.
func (m *PerformanceMetrics) CacheMissRate() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return 1.0 - m.cacheHitRate()
}

// CyclesPerInstruction derives CPI, zero when no instruction was counted.
func (m *PerformanceMetrics) CyclesPerInstruction() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.cyclesPerInstruction()
}

func (m *PerformanceMetrics) cyclesPerInstruction() float64 {
	if m.instructionsExecuted == 0 {
		return 0.0
	}
	return float64(m.cycles) / float64(m.instructionsExecuted)
}

// ContextSwitchOverhead derives context switches per instruction.
func (m *PerformanceMetrics) ContextSwitchOverhead() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.contextSwitchOverhead()
}

func (m *PerformanceMetrics) contextSwitchOverhead() float64 {
	if m.instructionsExecuted == 0 {
		return 0.0
	}
	return float64(m.contextSwitches) / float64(m.instructionsExecuted)
}

// Metrics returns the flat key-to-value export of all raw and derived
// metrics, plus the detailed-tracking figures when enabled.
func (m *PerformanceMetrics) Metrics() map[string]any {
	m.lock.Lock()
	defer m.lock.Unlock()

	out := map[string]any{
		"instructions_executed": m.instructionsExecuted,
		"memory_accesses":       m.memoryAccesses,
		"cache_hits":            m.cacheHits,
		"cache_misses":          m.cacheMisses,
		"context_switches":      m.contextSwitches,
		"cycles":                m.cycles,
		"execution_time":        m.executionTime,

		"instructions_per_second":    m.instructionsPerSecond(),
		"memory_accesses_per_second": m.memoryAccessesPerSecond(),
		"cache_hit_rate":             m.cacheHitRate(),
		"cache_miss_rate":            1.0 - m.cacheHitRate(),
		"cycles_per_instruction":     m.cyclesPerInstruction(),
		"context_switch_overhead":    m.contextSwitchOverhead(),
	}

	if m.detailedTracking {
		breakdown := make(map[string]uint64, len(m.instructionBreakdown))
		for k, v := range m.instructionBreakdown {
			breakdown[k] = v
		}
		histogram := make(map[uint64]uint64, len(m.memoryHistogram))
		for k, v := range m.memoryHistogram {
			histogram[k] = v
		}

		out["instruction_breakdown"] = breakdown
		out["memory_access_histogram"] = histogram
		out["snapshot_count"] = len(m.snapshots)
		out["latency_measurements"] = len(m.latencyRecords)

		if len(m.latencyRecords) > 0 {
			minLat := m.latencyRecords[0].Latency
			maxLat := minLat
			sum := 0.0
			for _, r := range m.latencyRecords {
				if r.Latency < minLat {
					minLat = r.Latency
				}
				if r.Latency > maxLat {
					maxLat = r.Latency
				}
				sum += r.Latency
			}

			out["average_latency"] = sum / float64(len(m.latencyRecords))
			out["min_latency"] = minLat
			out["max_latency"] = maxLat
		}
	}

	return out
}

// Reset zeroes all counters and detailed records and restarts the
// measurement clock.
func (m *PerformanceMetrics) Reset() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.instructionsExecuted = 0
	m.memoryAccesses = 0
	m.cacheHits = 0
	m.cacheMisses = 0
	m.contextSwitches = 0
	m.cycles = 0
	m.executionTime = 0.0
	m.startTime = m.now()

	if m.detailedTracking {
		m.snapshots = nil
		m.instructionBreakdown = make(map[string]uint64)
		m.memoryHistogram = make(map[uint64]uint64)
		m.latencyRecords = nil
	}
}
