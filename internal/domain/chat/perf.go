package chat

import (
	"sort"
	"sync"
	"time"
)

const perfSampleCap = 512

// LatencySummary aggregates a rolling sample window
type LatencySummary struct {
	Count int           `json:"count"`
	Avg   time.Duration `json:"avg_ms"`
	P95   time.Duration `json:"p95_ms"`
	Max   time.Duration `json:"max_ms"`
}

// PerfMonitor keeps rolling windows of delivery and read latencies for the
// admin stats endpoint. Prometheus histograms cover long-term observation;
// this exists so operators get numbers without a metrics stack attached.
type PerfMonitor struct {
	mu        sync.Mutex
	delivery  []time.Duration
	read      []time.Duration
	suspended int
}

func NewPerfMonitor() *PerfMonitor {
	return &PerfMonitor{}
}

// RecordDelivery records a send-to-first-delivery latency
func (p *PerfMonitor) RecordDelivery(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivery = appendSample(p.delivery, d)
}

// RecordRead records a send-to-first-read latency
func (p *PerfMonitor) RecordRead(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.read = appendSample(p.read, d)
}

// RecordSuspension counts a message that never got delivered
func (p *PerfMonitor) RecordSuspension() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended++
}

// Snapshot returns the current summaries
func (p *PerfMonitor) Snapshot() (delivery, read LatencySummary, suspended int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return summarize(p.delivery), summarize(p.read), p.suspended
}

func appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	samples = append(samples, d)
	if len(samples) > perfSampleCap {
		samples = samples[len(samples)-perfSampleCap:]
	}
	return samples
}

func summarize(samples []time.Duration) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	idx := (len(sorted) * 95) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return LatencySummary{
		Count: len(sorted),
		Avg:   total / time.Duration(len(sorted)),
		P95:   sorted[idx],
		Max:   sorted[len(sorted)-1],
	}
}
