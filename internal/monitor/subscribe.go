package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/scened/internal/scene"
)

type listenerEntry struct {
	id     Subscription
	fn     Listener
	active atomic.Bool
}

// Subscribe registers fn for every future change. It returns zero when fn is
// nil or the monitor is closed.
func (m *Monitor) Subscribe(fn Listener) Subscription {
	if fn == nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0
	}

	m.nextID++
	entry := &listenerEntry{id: Subscription(m.nextID), fn: fn}
	entry.active.Store(true)

	listeners := make([]*listenerEntry, len(m.listeners), len(m.listeners)+1)
	copy(listeners, m.listeners)
	m.listeners = append(listeners, entry)

	return entry.id
}

// Unsubscribe removes a listener. Once it returns, no new invocation of the
// listener starts; one already running may still finish.
func (m *Monitor) Unsubscribe(sub Subscription) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.listeners {
		if l.id != sub {
			continue
		}

		l.active.Store(false)
		listeners := make([]*listenerEntry, 0, len(m.listeners)-1)
		listeners = append(listeners, m.listeners[:i]...)
		m.listeners = append(listeners, m.listeners[i+1:]...)

		return true
	}

	return false
}

// Watch returns a channel of snapshots that is closed when ctx is done or
// the monitor is closed. A slow receiver loses intermediate snapshots but
// always ends up with the latest one.
func (m *Monitor) Watch(ctx context.Context) <-chan scene.State {
	w := &watcher{
		ch:   make(chan scene.State, m.watchBuffer),
		done: make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		w.close()

		return w.ch
	}
	m.watchers[w] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-w.done:
			return
		}

		m.mu.Lock()
		delete(m.watchers, w)
		m.mu.Unlock()

		w.close()
	}()

	return w.ch
}

func (m *Monitor) dispatch(snap scene.State, listeners []*listenerEntry, watchers []*watcher) {
	for _, l := range listeners {
		if !l.active.Load() {
			continue
		}
		m.invoke(l, snap)
	}

	for _, w := range watchers {
		w.send(snap)
	}
}

// invoke isolates a failing listener from the others and from the monitor.
func (m *Monitor) invoke(l *listenerEntry, snap scene.State) {
	defer func() {
		if r := recover(); r != nil {
			m.listenerFailures.Add(1)
			m.logger.Error().
				Uint64("subscription", uint64(l.id)).
				Uint64("seq", snap.Seq).
				Str("panic", fmt.Sprint(r)).
				Msg("Scene listener failed")
		}
	}()

	l.fn(snap)
	m.notifications.Add(1)
}

type watcher struct {
	mu      sync.Mutex
	ch      chan scene.State
	done    chan struct{}
	lastSeq uint64
	closed  bool
}

// send never blocks: when the buffer is full the oldest pending snapshot is
// dropped. Snapshots older than one already sent are discarded.
func (w *watcher) send(snap scene.State) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || snap.Seq <= w.lastSeq {
		return
	}
	w.lastSeq = snap.Seq

	for {
		select {
		case w.ch <- snap:
			return
		default:
		}

		select {
		case <-w.ch:
		default:
		}
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
	close(w.done)
}
