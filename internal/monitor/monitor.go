// Package monitor owns the live scene. It serializes updates from
// independent signal sources and publishes immutable snapshots.
package monitor

import (
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/scened/internal/logger"
	"codeberg.org/mutker/scened/internal/scene"
)

const defaultWatchBuffer = 4

type Monitor struct {
	mu        sync.Mutex
	state     scene.State
	listeners []*listenerEntry // copy on write
	watchers  map[*watcher]struct{}
	nextID    uint64
	closed    bool

	applied          atomic.Uint64
	ignored          atomic.Uint64
	notifications    atomic.Uint64
	listenerFailures atomic.Uint64

	logger      logger.Logger
	watchBuffer int
}

type Option func(*Monitor)

// WithLogger sets the logger used to report listener failures.
func WithLogger(log logger.Logger) Option {
	return func(m *Monitor) {
		if log != nil {
			m.logger = log
		}
	}
}

// WithWatchBuffer sets the channel capacity used by Watch.
func WithWatchBuffer(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.watchBuffer = n
		}
	}
}

// New returns a Monitor holding the default scene.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		state:       scene.New(),
		watchers:    make(map[*watcher]struct{}),
		logger:      logger.Nop(),
		watchBuffer: defaultWatchBuffer,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// UpdateApp replaces the foreground app. An empty id is ignored.
func (m *Monitor) UpdateApp(app scene.AppID) bool {
	return m.Apply(Update{Factors: scene.FactorApp, App: app})
}

// UpdateBattery merges the known fields of battery into the live scene.
// Unknown fields keep their previous value.
func (m *Monitor) UpdateBattery(battery scene.Battery) bool {
	return m.Apply(Update{Factors: scene.FactorBattery, Battery: battery})
}

// UpdateBrightness records a brightness reading. Unknown readings are
// ignored.
func (m *Monitor) UpdateBrightness(level scene.Value) bool {
	return m.Apply(Update{Factors: scene.FactorBrightness, Brightness: level})
}

// Apply merges every factor named in u under a single lock acquisition and
// publishes at most one snapshot. It reports whether the scene changed.
func (m *Monitor) Apply(u Update) bool {
	m.mu.Lock()

	next := m.state
	changed := scene.FactorNone

	if u.Factors&scene.FactorApp != 0 && u.App != "" && u.App != next.App {
		next.App = u.App
		changed |= scene.FactorApp
	}

	if u.Factors&scene.FactorBattery != 0 {
		if merged, ok := next.Battery.Merge(u.Battery); ok {
			next.Battery = merged
			changed |= scene.FactorBattery
		}
	}

	if u.Factors&scene.FactorBrightness != 0 && u.Brightness.IsKnown() && u.Brightness != next.Brightness {
		next.Brightness = u.Brightness
		changed |= scene.FactorBrightness
	}

	if changed == scene.FactorNone {
		m.mu.Unlock()
		m.ignored.Add(1)

		return false
	}

	next.Seq = m.state.Seq + 1
	next.Changed = changed
	m.state = next

	listeners := m.listeners
	watchers := make([]*watcher, 0, len(m.watchers))
	for w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()

	m.applied.Add(1)
	m.dispatch(next, listeners, watchers)

	return true
}

// Snapshot returns a copy of the live scene.
func (m *Monitor) Snapshot() scene.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Stats returns the monitor counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	listeners, watchers := len(m.listeners), len(m.watchers)
	m.mu.Unlock()

	return Stats{
		Applied:          m.applied.Load(),
		Ignored:          m.ignored.Load(),
		Notifications:    m.notifications.Load(),
		ListenerFailures: m.listenerFailures.Load(),
		Listeners:        listeners,
		Watchers:         watchers,
	}
}

// Close drops every listener and closes every watch channel. Updates keep
// being applied afterwards but nobody is notified.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true

	for _, l := range m.listeners {
		l.active.Store(false)
	}
	m.listeners = nil

	watchers := make([]*watcher, 0, len(m.watchers))
	for w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.watchers = make(map[*watcher]struct{})
	m.mu.Unlock()

	for _, w := range watchers {
		w.close()
	}
}
