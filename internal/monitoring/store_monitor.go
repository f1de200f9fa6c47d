package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const probeTimeout = 5 * time.Second

// Pinger is anything that can report whether the credential store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProbeResult is the outcome of one store probe.
type ProbeResult struct {
	At      time.Time `json:"at"`
	Healthy bool      `json:"healthy"`
	Error   string    `json:"error,omitempty"`
}

// StoreMonitor probes the credential store on a cron schedule and keeps the
// latest result for the health endpoint.
type StoreMonitor struct {
	store Pinger
	cron  *cron.Cron
	now   func() time.Time

	mu     sync.RWMutex
	last   ProbeResult
	probed bool
}

// NewStoreMonitor creates a monitor running on schedule, a standard cron
// expression or descriptor such as "@every 30s".
func NewStoreMonitor(store Pinger, schedule string) (*StoreMonitor, error) {
	m := &StoreMonitor{
		store: store,
		cron:  cron.New(cron.WithLogger(cron.PrintfLogger(&log.Logger))),
		now:   time.Now,
	}
	if _, err := m.cron.AddFunc(schedule, func() { m.Probe(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid probe schedule %q: %w", schedule, err)
	}
	return m, nil
}

// Start probes once immediately and then starts the schedule in the background.
func (m *StoreMonitor) Start() {
	log.Info().Msg("Starting store monitor...")
	m.Probe(context.Background())
	m.cron.Start()
}

// Stop halts the schedule and waits for a running probe to finish.
func (m *StoreMonitor) Stop() {
	<-m.cron.Stop().Done()
	log.Info().Msg("Store monitor stopped")
}

// Probe pings the store, records the result and logs availability changes.
func (m *StoreMonitor) Probe(ctx context.Context) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	result := ProbeResult{At: m.now().UTC(), Healthy: true}
	if err := m.store.Ping(ctx); err != nil {
		result.Healthy = false
		result.Error = err.Error()
	}

	m.mu.Lock()
	prev, hadPrev := m.last, m.probed
	m.last, m.probed = result, true
	m.mu.Unlock()

	switch {
	case !result.Healthy && (!hadPrev || prev.Healthy):
		log.Error().Str("error", result.Error).Msg("Credential store unreachable")
	case result.Healthy && hadPrev && !prev.Healthy:
		log.Info().Msg("Credential store reachable again")
	}
	return result
}

// LastProbe returns the most recent result. ok is false before the first probe.
func (m *StoreMonitor) LastProbe() (result ProbeResult, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.probed
}
