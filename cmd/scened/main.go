package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"codeberg.org/mutker/scened/internal/config"
	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/journal"
	"codeberg.org/mutker/scened/internal/logger"
	"codeberg.org/mutker/scened/internal/monitor"
	"codeberg.org/mutker/scened/internal/pid"
	"codeberg.org/mutker/scened/internal/policy"
	"codeberg.org/mutker/scened/internal/scene"
	"codeberg.org/mutker/scened/internal/source"
)

const watchBuffer = 32

var (
	cfg    *config.Config
	loader *config.Loader
)

// setup loads the config and the logger. It runs from main rather than
// init so that the package's tests do not parse the test binary's flags.
func setup() {
	var err error
	loader, err = config.NewLoader()
	if err != nil {
		fmt.Printf("failed to parse flags: %v\n", err)
		os.Exit(1)
	}

	cfg, err = loader.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Str("file", loader.ConfigFile()).Msg("Config loaded")
}

func main() {
	setup()

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx); err != nil {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.ErrorWithCode(coded).Msg("Daemon stopped")
		} else {
			logger.Error().Err(err).Msg("Daemon stopped")
		}
	}

	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("Failed to remove PID file")
	}
	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context) error {
	m := monitor.New(
		monitor.WithLogger(logger.Component("monitor")),
		monitor.WithWatchBuffer(watchBuffer),
	)

	m.Subscribe(func(s scene.State) {
		logger.Info().Object("scene", s).Msg("Scene changed")
	})

	rec, err := journal.NewService(journalConfig(cfg), logger.Component("journal"))
	if err != nil {
		return err
	}

	governor := policy.NewSysfsGovernor(cfg.CPUFreqRoot)
	original, err := governor.Current()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read current CPU governor")
	}

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Logging scene changes only...")
	}

	agent := policy.NewCPUAgent(cpuConfig(cfg), governor, logger.Component("cpu"))
	registry := policy.NewRegistry(m)

	d := &daemon{
		monitor:  m,
		registry: registry,
		agent:    agent,
		governor: governor,
		original: original,
		recorder: rec,
	}
	d.startJournal(ctx)
	defer d.shutdown()

	if err := registry.Add(agent); err != nil {
		return err
	}

	if err := loader.Watch(ctx, func(next *config.Config) {
		if err := logger.SetLevel(next.LogLevel); err != nil {
			logger.Warn().Err(err).Msg("Failed to apply log level")
		}
		agent.SetConfig(cpuConfig(next))
		logger.Info().Str("file", loader.ConfigFile()).Msg("Config reloaded")
	}, func(err error) {
		logger.Warn().Err(err).Msg("Ignoring invalid config change")
	}); err != nil {
		logger.Debug().Err(err).Msg("Config reload disabled")
	}

	poller, err := source.NewPoller(m, time.Duration(cfg.Interval)*time.Second, logger.Component("poller"), sources(cfg)...)
	if err != nil {
		return err
	}

	return poller.Run(ctx)
}

func sources(cfg *config.Config) []source.Source {
	var srcs []source.Source

	battery, err := source.NewBatterySource(cfg.SysfsRoot, cfg.Battery)
	if err != nil {
		logger.Warn().Err(err).Msg("Battery signal unavailable")
	} else {
		srcs = append(srcs, battery)
	}

	backlight, err := source.NewBacklightSource(cfg.SysfsRoot, cfg.Backlight)
	if err != nil {
		logger.Warn().Err(err).Msg("Brightness signal unavailable")
	} else {
		srcs = append(srcs, backlight)
	}

	if cfg.AppFile != "" {
		srcs = append(srcs, source.NewAppSource(cfg.AppFile))
	}

	return srcs
}

func cpuConfig(cfg *config.Config) policy.CPUConfig {
	return policy.CPUConfig{
		PerformanceApps: cfg.PerformanceApps,
		LowBattery:      cfg.LowBattery,
		HotTemperature:  cfg.HotTemperature,
		DryRun:          cfg.Monitor,
	}
}

func journalConfig(cfg *config.Config) journal.Config {
	jc := journal.DefaultConfig()
	jc.Enabled = cfg.Journal
	jc.DBPath = cfg.JournalDB

	return jc
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// daemon holds what shutdown has to release.
type daemon struct {
	monitor  *monitor.Monitor
	registry *policy.Registry
	agent    *policy.CPUAgent
	governor policy.GovernorWriter
	original string
	recorder journal.Recorder

	journalDone sync.WaitGroup
}

func (d *daemon) startJournal(ctx context.Context) {
	states := d.monitor.Watch(ctx)

	d.journalDone.Add(1)
	go func() {
		defer d.journalDone.Done()
		journal.Run(ctx, d.recorder, states, logger.Component("journal"))
	}()
}

// shutdown stops policy agents, closes the monitor, which ends the journal
// loop, flushes the journal and puts the original CPU governor back if the
// agent ever replaced it.
func (d *daemon) shutdown() {
	d.registry.Close()
	d.monitor.Close()

	d.journalDone.Wait()
	if err := d.recorder.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close scene journal")
	}

	if d.original == "" || !d.agent.Wrote() {
		return
	}
	if err := d.governor.SetGovernor(d.original); err != nil {
		logger.Error().Err(err).Msg("Failed to restore CPU governor")
	}
}
