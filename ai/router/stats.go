package router

import (
	"sync"
)

// ProviderStats is a snapshot of one provider's counters.
type ProviderStats struct {
	Wins      int64   `json:"wins"`
	Errors    int64   `json:"errors"`
	Total     int64   `json:"total"`
	WinRate   float64 `json:"win_rate"`
	ErrorRate float64 `json:"error_rate"`
}

// Observer receives win and error events as they are recorded, on top of
// the internal counters. Implemented by the metrics exporter.
type Observer interface {
	RecordProviderWin(provider string)
	RecordProviderError(provider string)
}

// Stats tracks per-provider win/error counters. Counters only grow;
// Reset is an explicit operator action.
type Stats struct {
	mu       sync.Mutex
	counters map[string]*counter
	observer Observer
}

type counter struct {
	wins   int64
	errors int64
}

// NewStats creates an empty stats tracker.
func NewStats() *Stats {
	return &Stats{
		counters: make(map[string]*counter),
	}
}

func (s *Stats) register(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.counters[name]; !ok {
		s.counters[name] = &counter{}
	}
}

// SetObserver attaches an event observer. Call before the router serves
// traffic, the field is not otherwise synchronized for writes.
func (s *Stats) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

func (s *Stats) recordWin(name string) {
	s.mu.Lock()
	if c, ok := s.counters[name]; ok {
		c.wins++
	}
	o := s.observer
	s.mu.Unlock()

	if o != nil {
		o.RecordProviderWin(name)
	}
}

func (s *Stats) recordError(name string) {
	s.mu.Lock()
	if c, ok := s.counters[name]; ok {
		c.errors++
	}
	o := s.observer
	s.mu.Unlock()

	if o != nil {
		o.RecordProviderError(name)
	}
}

// Snapshot returns per-provider statistics. Rates are 0.0 when a provider
// has no recorded attempts.
func (s *Stats) Snapshot() map[string]ProviderStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]ProviderStats, len(s.counters))
	for name, c := range s.counters {
		total := c.wins + c.errors
		ps := ProviderStats{
			Wins:   c.wins,
			Errors: c.errors,
			Total:  total,
		}
		if total > 0 {
			ps.WinRate = float64(c.wins) / float64(total)
			ps.ErrorRate = float64(c.errors) / float64(total)
		}
		snapshot[name] = ps
	}
	return snapshot
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.counters {
		c.wins = 0
		c.errors = 0
	}
}
