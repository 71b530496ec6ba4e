package monitor_test

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/scened/internal/logger"
	"codeberg.org/mutker/scened/internal/monitor"
	"codeberg.org/mutker/scened/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func battery(level, plugged, status, health, temperature int) scene.Battery {
	return scene.Battery{
		Level:       scene.FromRaw(level),
		Plugged:     scene.FromRaw(plugged),
		Status:      scene.FromRaw(status),
		Health:      scene.FromRaw(health),
		Temperature: scene.FromRaw(temperature),
	}
}

func TestScenario(t *testing.T) {
	m := monitor.New()

	s := m.Snapshot()
	assert.Equal(t, scene.DefaultApp, s.App)
	assert.Equal(t, scene.Battery{}, s.Battery)
	assert.Equal(t, scene.Unknown, s.Brightness.Raw())

	assert.True(t, m.UpdateApp("com.example.map"))
	s = m.Snapshot()
	assert.Equal(t, scene.AppID("com.example.map"), s.App)
	assert.Equal(t, scene.Battery{}, s.Battery)
	assert.False(t, s.Brightness.IsKnown())

	assert.True(t, m.UpdateBattery(battery(55, 1, 2, 1, 300)))
	want := battery(55, 1, 2, 1, 300)
	assert.Equal(t, want, m.Snapshot().Battery)

	assert.False(t, m.UpdateBattery(battery(-1, -1, -1, -1, -1)))
	assert.Equal(t, want, m.Snapshot().Battery)
	assert.Equal(t, scene.AppID("com.example.map"), m.Snapshot().App)
}

func TestLastKnownValueWins(t *testing.T) {
	m := monitor.New()

	m.UpdateBrightness(scene.Known(10))
	m.UpdateBrightness(scene.Value{})
	m.UpdateBrightness(scene.Known(120))
	m.UpdateBrightness(scene.FromRaw(-1))
	m.UpdateBattery(battery(40, -1, -1, -1, -1))
	m.UpdateBattery(battery(-1, 0, -1, -1, 250))
	m.UpdateApp("")

	s := m.Snapshot()
	assert.Equal(t, 120, s.Brightness.Raw())
	assert.Equal(t, 40, s.Battery.Level.Raw())
	assert.Equal(t, 0, s.Battery.Plugged.Raw())
	assert.Equal(t, 250, s.Battery.Temperature.Raw())
	assert.False(t, s.Battery.Status.IsKnown())
	assert.False(t, s.Battery.Health.IsKnown())
	assert.Equal(t, scene.DefaultApp, s.App)
}

func TestUnknownBatteryFieldsPreserved(t *testing.T) {
	m := monitor.New()
	m.UpdateBattery(battery(70, 0, 3, 2, 280))

	m.UpdateBattery(scene.Battery{Plugged: scene.Known(80)})

	s := m.Snapshot()
	assert.Equal(t, 70, s.Battery.Level.Raw())
	assert.Equal(t, 80, s.Battery.Plugged.Raw())
}

func TestNoNotificationForUnchangedValue(t *testing.T) {
	m := monitor.New()

	var calls atomic.Int32
	m.Subscribe(func(scene.State) { calls.Add(1) })

	m.UpdateBrightness(scene.Known(42))
	m.UpdateBrightness(scene.Known(42))
	assert.Equal(t, int32(1), calls.Load())

	m.UpdateApp("com.example.map")
	m.UpdateApp("com.example.map")
	assert.Equal(t, int32(2), calls.Load())

	m.UpdateBattery(battery(50, -1, -1, -1, -1))
	m.UpdateBattery(battery(50, -1, -1, -1, -1))
	m.UpdateBattery(battery(-1, -1, -1, -1, -1))
	assert.Equal(t, int32(3), calls.Load())

	stats := m.Stats()
	assert.Equal(t, uint64(3), stats.Applied)
	assert.Equal(t, uint64(4), stats.Ignored)
	assert.Equal(t, uint64(3), stats.Notifications)
}

func TestBatteryUpdateNotifiesOnce(t *testing.T) {
	m := monitor.New()

	var got []scene.State
	m.Subscribe(func(s scene.State) { got = append(got, s) })

	m.UpdateBattery(battery(55, 1, 2, 1, 300))

	require.Len(t, got, 1)
	assert.Equal(t, scene.FactorBattery, got[0].Changed)
	assert.Equal(t, battery(55, 1, 2, 1, 300), got[0].Battery)
}

func TestApplySeveralFactors(t *testing.T) {
	m := monitor.New()

	var got []scene.State
	m.Subscribe(func(s scene.State) { got = append(got, s) })

	changed := m.Apply(monitor.Update{
		Factors:    scene.FactorApp | scene.FactorBrightness,
		App:        "com.example.reader",
		Battery:    battery(90, -1, -1, -1, -1),
		Brightness: scene.Known(200),
	})
	require.True(t, changed)

	require.Len(t, got, 1)
	assert.Equal(t, scene.FactorApp|scene.FactorBrightness, got[0].Changed)
	assert.False(t, got[0].Battery.Level.IsKnown(), "battery not named in Factors")
	assert.Equal(t, 200, got[0].Brightness.Raw())
}

func TestSequenceIncreases(t *testing.T) {
	m := monitor.New()

	var seqs []uint64
	m.Subscribe(func(s scene.State) { seqs = append(seqs, s.Seq) })

	m.UpdateApp("a")
	m.UpdateApp("a")
	m.UpdateApp("b")
	m.UpdateBrightness(scene.Known(1))

	assert.Equal(t, []uint64{1, 2, 3}, seqs)
	assert.Equal(t, uint64(3), m.Snapshot().Seq)
}

func TestSnapshotIsACopy(t *testing.T) {
	m := monitor.New()
	m.UpdateApp("com.example.map")

	s := m.Snapshot()
	s.App = "mutated"
	s.Battery.Level = scene.Known(1)

	assert.Equal(t, scene.AppID("com.example.map"), m.Snapshot().App)
	assert.False(t, m.Snapshot().Battery.Level.IsKnown())
}

func TestFailingListenerIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	m := monitor.New(monitor.WithLogger(logger.New(&buf)))

	m.Subscribe(func(scene.State) { panic("boom") })

	var got []scene.State
	m.Subscribe(func(s scene.State) { got = append(got, s) })

	assert.True(t, m.UpdateApp("com.example.map"))
	require.Len(t, got, 1)
	assert.Equal(t, scene.AppID("com.example.map"), got[0].App)

	assert.True(t, m.UpdateBrightness(scene.Known(3)))
	require.Len(t, got, 2)

	s := m.Snapshot()
	assert.Equal(t, scene.AppID("com.example.map"), s.App)
	assert.Equal(t, 3, s.Brightness.Raw())

	stats := m.Stats()
	assert.Equal(t, uint64(2), stats.ListenerFailures)
	assert.Equal(t, uint64(2), stats.Notifications)
	assert.Contains(t, buf.String(), "Scene listener failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestUnsubscribe(t *testing.T) {
	m := monitor.New()

	var calls atomic.Int32
	sub := m.Subscribe(func(scene.State) { calls.Add(1) })
	require.NotZero(t, sub)

	m.UpdateApp("a")
	assert.True(t, m.Unsubscribe(sub))
	assert.False(t, m.Unsubscribe(sub))
	m.UpdateApp("b")

	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, m.Subscribe(nil))
	assert.Equal(t, 0, m.Stats().Listeners)
}

func TestListenerMayUpdateMonitor(t *testing.T) {
	m := monitor.New()

	m.Subscribe(func(s scene.State) {
		if s.App == "com.example.game" {
			m.UpdateBrightness(scene.Known(255))
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.UpdateApp("com.example.game")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update from listener deadlocked")
	}

	assert.Equal(t, 255, m.Snapshot().Brightness.Raw())
}

func TestListenerMaySnapshot(t *testing.T) {
	m := monitor.New()

	var seen scene.State
	m.Subscribe(func(scene.State) { seen = m.Snapshot() })

	m.UpdateApp("com.example.map")
	assert.Equal(t, scene.AppID("com.example.map"), seen.App)
}

func TestWatch(t *testing.T) {
	m := monitor.New(monitor.WithWatchBuffer(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := m.Watch(ctx)
	assert.Equal(t, 1, m.Stats().Watchers)

	m.UpdateApp("a")
	m.UpdateApp("b")
	m.UpdateApp("c")

	s := <-ch
	assert.Equal(t, scene.AppID("c"), s.App, "receiver converges to the latest snapshot")
	assert.Equal(t, uint64(3), s.Seq)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
	assert.Eventually(t, func() bool { return m.Stats().Watchers == 0 }, time.Second, 10*time.Millisecond)
}

func TestClose(t *testing.T) {
	m := monitor.New()

	var calls atomic.Int32
	m.Subscribe(func(scene.State) { calls.Add(1) })
	ch := m.Watch(context.Background())

	m.Close()
	m.Close()

	_, ok := <-ch
	assert.False(t, ok)

	assert.True(t, m.UpdateApp("after-close"))
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, scene.AppID("after-close"), m.Snapshot().App)

	assert.Zero(t, m.Subscribe(func(scene.State) {}))
	_, ok = <-m.Watch(context.Background())
	assert.False(t, ok)
}

func TestNoTornReads(t *testing.T) {
	m := monitor.New()

	const rounds = 2000

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// App and battery temperature always move together.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= rounds; i++ {
			m.Apply(monitor.Update{
				Factors: scene.FactorApp | scene.FactorBattery,
				App:     scene.AppID(fmt.Sprintf("app-%d", i)),
				Battery: scene.Battery{Temperature: scene.Known(i)},
			})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= rounds; i++ {
			m.UpdateBattery(scene.Battery{Level: scene.Known(i % 101)})
			m.UpdateBrightness(scene.Known(i))
		}
	}()

	var torn atomic.Int32
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		var last uint64
		for {
			select {
			case <-stop:
				return
			default:
			}

			s := m.Snapshot()
			if s.Seq < last {
				torn.Add(1)
			}
			last = s.Seq

			temp, ok := s.Battery.Temperature.Get()
			if !ok {
				if s.App != scene.DefaultApp {
					torn.Add(1)
				}
				continue
			}
			if s.App != scene.AppID(fmt.Sprintf("app-%d", temp)) {
				torn.Add(1)
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone

	assert.Zero(t, torn.Load())

	s := m.Snapshot()
	assert.Equal(t, scene.AppID(fmt.Sprintf("app-%d", rounds)), s.App)
	assert.Equal(t, rounds, s.Battery.Temperature.Raw())
	assert.Equal(t, rounds, s.Brightness.Raw())
	assert.Equal(t, rounds%101, s.Battery.Level.Raw())
}

func TestConcurrentSubscribers(t *testing.T) {
	m := monitor.New()

	var wg sync.WaitGroup
	var calls atomic.Int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub := m.Subscribe(func(scene.State) { calls.Add(1) })
				m.UpdateBrightness(scene.Known(j))
				m.Unsubscribe(sub)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, m.Stats().Listeners)
	assert.Equal(t, calls.Load(), int64(m.Stats().Notifications))
}
