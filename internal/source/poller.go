package source

import (
	"context"
	"time"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/logger"
	"codeberg.org/mutker/scened/internal/monitor"
)

// Poller reads every source at a fixed interval and applies the results to
// the monitor.
type Poller struct {
	sources  []Source
	updater  monitor.Updater
	interval time.Duration
	logger   logger.Logger
	failing  map[string]bool
}

func NewPoller(updater monitor.Updater, interval time.Duration, log logger.Logger, sources ...Source) (*Poller, error) {
	if interval <= 0 {
		return nil, errors.New().WithData(ErrInvalidInterval, interval.String())
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Poller{
		sources:  sources,
		updater:  updater,
		interval: interval,
		logger:   log,
		failing:  make(map[string]bool, len(sources)),
	}, nil
}

// Run polls immediately and then on every tick until ctx is done. Source
// failures are logged and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll reads every source once and returns how many updates changed the
// scene.
func (p *Poller) Poll(ctx context.Context) int {
	changed := 0

	for _, src := range p.sources {
		if ctx.Err() != nil {
			return changed
		}

		update, err := src.Read(ctx)
		if err != nil {
			if !p.failing[src.Name()] {
				p.logger.Warn().Err(err).Str("source", src.Name()).Msg("Signal source failed")
			}
			p.failing[src.Name()] = true
			continue
		}

		if p.failing[src.Name()] {
			p.logger.Info().Str("source", src.Name()).Msg("Signal source recovered")
			p.failing[src.Name()] = false
		}

		if p.updater.Apply(update) {
			changed++
			p.logger.Debug().Str("source", src.Name()).Str("factors", update.Factors.String()).Msg("Scene updated")
		}
	}

	return changed
}
