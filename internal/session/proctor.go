package session

import "sync"

// Monitor tracks proctoring compliance from platform full-screen and
// visibility signals. A transition out of compliant full-screen raises a
// violation exactly once; the one-shot flag is independent of the
// controller's finalize latch because a violation can be observed before the
// durable submission identity exists. Such early violations are held as
// pending and consumed exactly once when the session becomes active.
type Monitor struct {
	mu        sync.Mutex
	compliant bool
	tripped   bool
	pending   bool
}

// NewMonitor creates a Monitor in the compliant state (the session starts
// inside enforced full-screen).
func NewMonitor() *Monitor {
	return &Monitor{compliant: true}
}

// ObserveFullscreen records a full-screen transition. It returns true only
// for the first exit from the compliant state; repeated exit events and any
// event after the flag tripped return false.
func (m *Monitor) ObserveFullscreen(active bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasCompliant := m.compliant
	m.compliant = active

	if active || !wasCompliant || m.tripped {
		return false
	}
	m.tripped = true
	return true
}

// Defer buffers a violation raised before the submission identity existed.
func (m *Monitor) Defer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = true
}

// TakePending consumes the buffered violation, returning true at most once.
func (m *Monitor) TakePending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return false
	}
	m.pending = false
	return true
}

// Compliant reports the current compliance state.
func (m *Monitor) Compliant() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compliant
}

// Tripped reports whether the one-shot violation flag has fired.
func (m *Monitor) Tripped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tripped
}
