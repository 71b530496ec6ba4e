package monitor

import (
	"context"

	"codeberg.org/mutker/scened/internal/scene"
)

// Updater is the inbound side used by signal sources.
type Updater interface {
	UpdateApp(app scene.AppID) bool
	UpdateBattery(battery scene.Battery) bool
	UpdateBrightness(level scene.Value) bool
	Apply(u Update) bool
}

// Reader returns point-in-time copies of the scene.
type Reader interface {
	Snapshot() scene.State
}

// Publisher delivers snapshots after every observable change.
type Publisher interface {
	Subscribe(fn Listener) Subscription
	Unsubscribe(sub Subscription) bool
	Watch(ctx context.Context) <-chan scene.State
}

// Listener receives a snapshot after a change. It runs on the goroutine of
// the update that caused the change, without any monitor lock held.
// Concurrent producers may deliver snapshots out of Seq order; a listener
// that keeps state should drop a snapshot whose Seq is lower than the last
// one it applied.
type Listener func(scene.State)

// Subscription identifies a registered Listener. The zero value is never
// issued.
type Subscription uint64

// Update carries several factors to apply in one step. Only the factors
// named in Factors are considered.
type Update struct {
	Factors    scene.Factor
	App        scene.AppID
	Battery    scene.Battery
	Brightness scene.Value
}

// Stats are monitor counters since construction.
type Stats struct {
	Applied          uint64
	Ignored          uint64
	Notifications    uint64
	ListenerFailures uint64
	Listeners        int
	Watchers         int
}
