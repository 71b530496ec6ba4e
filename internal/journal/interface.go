package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/scened/internal/scene"
)

// Recorder appends scene transitions.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Repository is the storage behind a Recorder.
type Repository interface {
	Record(entry *Entry) error
	Flush() error
	Recent(limit int) ([]Entry, error)
	Close() error
}

// Entry is one published scene snapshot. Session identifies the daemon run
// that recorded it, since Seq restarts with every run.
type Entry struct {
	Timestamp time.Time
	Session   string
	State     scene.State
}
