package policy

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/logger"
	"codeberg.org/mutker/scened/internal/scene"
)

const CPUAgentName = "cpu"

type CPUConfig struct {
	// PerformanceApps get ProfilePerformance unless power must be saved.
	PerformanceApps []string
	// LowBattery is the charge percent at or below which an unplugged
	// device saves power.
	LowBattery int
	// HotTemperature is the battery temperature, in tenths of a degree,
	// at or above which the device saves power.
	HotTemperature int
	// Governors maps each profile to a cpufreq governor.
	Governors map[Profile]string
	// DryRun logs decisions without writing them.
	DryRun bool
}

// DefaultGovernors returns the stock cpufreq governor per profile.
func DefaultGovernors() map[Profile]string {
	return map[Profile]string{
		ProfilePowersave:   "powersave",
		ProfileBalanced:    "schedutil",
		ProfilePerformance: "performance",
	}
}

// CPUAgent switches the cpufreq governor when the foreground app, the
// battery or its temperature calls for another profile.
type CPUAgent struct {
	writer GovernorWriter
	logger logger.Logger

	mu       sync.Mutex
	cfg      CPUConfig
	apps     map[scene.AppID]struct{}
	current  Profile
	last     scene.State
	lastSeen bool
	wrote    bool
}

func NewCPUAgent(cfg CPUConfig, writer GovernorWriter, log logger.Logger) *CPUAgent {
	if log == nil {
		log = logger.Nop()
	}

	a := &CPUAgent{writer: writer, logger: log}
	a.setConfig(cfg)

	return a
}

func (*CPUAgent) Name() string {
	return CPUAgentName
}

// Decide picks the profile for s. Heat and a draining low battery win over
// the app.
func (a *CPUAgent) Decide(s scene.State) Profile {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.decide(s)
}

func (a *CPUAgent) decide(s scene.State) Profile {
	if temp, ok := s.Battery.Temperature.Get(); ok && temp >= a.cfg.HotTemperature {
		return ProfilePowersave
	}
	if level, ok := s.Battery.Level.Get(); ok && level <= a.cfg.LowBattery && isUnplugged(s.Battery) {
		return ProfilePowersave
	}
	if _, ok := a.apps[s.App]; ok {
		return ProfilePerformance
	}

	return ProfileBalanced
}

// isUnplugged is false for an unknown plug state.
func isUnplugged(b scene.Battery) bool {
	v, ok := b.Plugged.Get()
	return ok && v == scene.Unplugged
}

// OnScene applies the profile for s. Snapshots older than the last one
// seen are dropped.
func (a *CPUAgent) OnScene(s scene.State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lastSeen && s.Seq < a.last.Seq {
		return
	}
	a.last = s
	a.lastSeen = true

	a.apply(a.decide(s))
}

// SetConfig replaces thresholds and app list and re-evaluates the last
// scene.
func (a *CPUAgent) SetConfig(cfg CPUConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.setConfig(cfg)
	if a.lastSeen {
		a.apply(a.decide(a.last))
	}
}

func (a *CPUAgent) setConfig(cfg CPUConfig) {
	if cfg.Governors == nil {
		cfg.Governors = DefaultGovernors()
	}

	// A profile chosen in dry run was never written.
	if a.cfg.DryRun && !cfg.DryRun {
		a.current = ProfileNone
	}

	apps := make(map[scene.AppID]struct{}, len(cfg.PerformanceApps))
	for _, app := range cfg.PerformanceApps {
		apps[scene.AppID(app)] = struct{}{}
	}

	a.cfg = cfg
	a.apps = apps
}

// Wrote reports whether a governor was ever written, so the caller knows
// whether the original one needs restoring.
func (a *CPUAgent) Wrote() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.wrote
}

// Profile returns the profile applied last.
func (a *CPUAgent) Profile() Profile {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.current
}

func (a *CPUAgent) apply(profile Profile) {
	if profile == a.current {
		return
	}

	governor := a.cfg.Governors[profile]
	if a.cfg.DryRun {
		a.logger.Info().
			Str("profile", string(profile)).
			Str("governor", governor).
			Str("app", string(a.last.App)).
			Msg("CPU profile change (dry run)")
		a.current = profile
		return
	}

	if err := a.writer.SetGovernor(governor); err != nil {
		a.logger.Error().Err(err).Str("profile", string(profile)).Msg("Failed to apply CPU profile")
		return
	}

	a.logger.Info().
		Str("from", string(a.current)).
		Str("profile", string(profile)).
		Str("governor", governor).
		Str("app", string(a.last.App)).
		Msg("CPU profile applied")
	a.current = profile
	a.wrote = true
}

// SysfsGovernor writes scaling_governor for every cpufreq policy under root.
type SysfsGovernor struct {
	root string
}

func NewSysfsGovernor(root string) *SysfsGovernor {
	return &SysfsGovernor{root: root}
}

func (g *SysfsGovernor) SetGovernor(governor string) error {
	errFactory := errors.New()

	policies, err := filepath.Glob(filepath.Join(g.root, "policy*"))
	if err != nil {
		return errFactory.Wrap(ErrApplyFailed, err)
	}
	if len(policies) == 0 {
		return errFactory.WithData(ErrNoCPUPolicy, g.root)
	}

	for _, dir := range policies {
		if available, err := os.ReadFile(filepath.Join(dir, "scaling_available_governors")); err == nil {
			if !containsField(string(available), governor) {
				return errFactory.WithData(ErrGovernorUnavailable, struct {
					Policy   string
					Governor string
				}{filepath.Base(dir), governor})
			}
		}

		if err := os.WriteFile(filepath.Join(dir, "scaling_governor"), []byte(governor), 0o644); err != nil {
			return errFactory.Wrap(ErrApplyFailed, err).WithData(dir)
		}
	}

	return nil
}

// Current returns the governor of the first cpufreq policy.
func (g *SysfsGovernor) Current() (string, error) {
	errFactory := errors.New()

	policies, err := filepath.Glob(filepath.Join(g.root, "policy*"))
	if err != nil {
		return "", errFactory.Wrap(ErrApplyFailed, err)
	}
	if len(policies) == 0 {
		return "", errFactory.WithData(ErrNoCPUPolicy, g.root)
	}

	data, err := os.ReadFile(filepath.Join(policies[0], "scaling_governor"))
	if err != nil {
		return "", errFactory.Wrap(errors.ErrSourceRead, err).WithData(policies[0])
	}

	return strings.TrimSpace(string(data)), nil
}

func containsField(list, field string) bool {
	for _, f := range strings.Fields(list) {
		if f == field {
			return true
		}
	}

	return false
}
