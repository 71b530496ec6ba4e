package policy

import (
	"codeberg.org/mutker/scened/internal/monitor"
	"codeberg.org/mutker/scened/internal/scene"
)

// Agent turns scene changes into an adaptive decision.
type Agent interface {
	Name() string
	OnScene(s scene.State)
}

// SceneSource is what a Registry needs from the monitor.
type SceneSource interface {
	monitor.Reader
	monitor.Publisher
}

// GovernorWriter applies a cpufreq governor to every CPU policy.
type GovernorWriter interface {
	SetGovernor(governor string) error
}

// Profile is a CPU power profile.
type Profile string

const (
	ProfileNone        Profile = ""
	ProfilePowersave   Profile = "powersave"
	ProfileBalanced    Profile = "balanced"
	ProfilePerformance Profile = "performance"
)
