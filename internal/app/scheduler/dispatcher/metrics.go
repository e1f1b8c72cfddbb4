package dispatcher

import "sync/atomic"

// Metrics counts dispatcher activity with lock-free atomics.
type Metrics struct {
	ticks        atomic.Uint64
	tickErrors   atomic.Uint64
	claimed      atomic.Uint64
	published    atomic.Uint64
	requeued     atomic.Uint64
	deadLettered atomic.Uint64
	conflicts    atomic.Uint64
	healed       atomic.Uint64
	reclaimed    atomic.Uint64
}

// Stats is a point-in-time snapshot of the counters.
type Stats struct {
	Ticks        uint64 // completed due-index polls
	TickErrors   uint64 // polls aborted by storage errors
	Claimed      uint64 // leases granted to this dispatcher
	Published    uint64 // events finalized as completed
	Requeued     uint64 // publish failures returned to the schedule
	DeadLettered uint64 // events finalized as failed
	Conflicts    uint64 // claims lost to another worker
	Healed       uint64 // dangling index entries removed
	Reclaimed    uint64 // expired-lease events rediscovered by the sweep
}

// Stats returns a snapshot of the counters.
func (m *Metrics) Stats() Stats {
	return Stats{
		Ticks:        m.ticks.Load(),
		TickErrors:   m.tickErrors.Load(),
		Claimed:      m.claimed.Load(),
		Published:    m.published.Load(),
		Requeued:     m.requeued.Load(),
		DeadLettered: m.deadLettered.Load(),
		Conflicts:    m.conflicts.Load(),
		Healed:       m.healed.Load(),
		Reclaimed:    m.reclaimed.Load(),
	}
}
