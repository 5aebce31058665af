package sysmon

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// SamplerState tracks the CPUSampler lifecycle.
type SamplerState int

const (
	StateIdle SamplerState = iota
	StateSampling
	StateStopped
)

// SampleFunc takes one blocking, interval-wide system CPU utilization
// sample (0-100). Injectable so tests can supply a deterministic source.
type SampleFunc func(ctx context.Context, interval time.Duration) (float64, error)

func systemCPUPercent(ctx context.Context, interval time.Duration) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, nil
	}
	return pcts[0], nil
}

// CPUSampler periodically measures system-wide CPU utilization for the
// lifetime of one outbound inference call. One sampler per request;
// discarded after Result is read.
type CPUSampler struct {
	interval time.Duration
	sample   SampleFunc

	mu      sync.Mutex
	state   SamplerState
	samples []float64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCPUSampler creates a sampler backed by gopsutil's system-wide
// CPU utilization.
func NewCPUSampler(interval time.Duration) *CPUSampler {
	return NewCPUSamplerWithSource(interval, systemCPUPercent)
}

// NewCPUSamplerWithSource creates a sampler with a custom sample source.
func NewCPUSamplerWithSource(interval time.Duration, sample SampleFunc) *CPUSampler {
	return &CPUSampler{
		interval: interval,
		sample:   sample,
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// Start begins the sampling loop. Only valid from Idle; any other state
// is a no-op.
func (s *CPUSampler) Start() {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateSampling
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.loop(ctx)
}

func (s *CPUSampler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		if ctx.Err() != nil {
			return
		}
		pct, err := s.sample(ctx, s.interval)
		if err != nil {
			// Back off for one interval so a broken source cannot spin.
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.interval):
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		s.samples = append(s.samples, pct)
		s.mu.Unlock()
	}
}

// Stop signals the sampling loop to exit and blocks until it has.
// Idempotent; a Stop before Start leaves the sampler stopped with no
// samples.
func (s *CPUSampler) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return
	case StateIdle:
		s.state = StateStopped
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.done
}

// Result returns the arithmetic mean of all samples collected, or 0.0
// if none were (e.g. the call finished inside one sampling interval).
func (s *CPUSampler) Result() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range s.samples {
		sum += v
	}
	return sum / float64(len(s.samples))
}

// State reports the sampler lifecycle state.
func (s *CPUSampler) State() SamplerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SampleCount reports how many samples have been collected so far.
func (s *CPUSampler) SampleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}
