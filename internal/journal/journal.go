package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/logger"
	"codeberg.org/mutker/scened/internal/scene"
)

type service struct {
	repo   Repository
	logger logger.Logger
}

type noopRecorder struct{}

// NewService returns a Recorder backed by sqlite, or a no-op Recorder when
// the journal is disabled.
func NewService(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if log == nil {
		log = logger.Nop()
	}

	if !cfg.Enabled {
		log.Debug().Msg("Scene journal disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo, logger: log}, nil
}

func (s *service) Record(ctx context.Context, entry *Entry) error {
	errFactory := errors.New()

	if entry == nil {
		return errFactory.New(ErrInvalidEntry)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrRecordTimeout, ctx.Err())
	default:
		if err := s.repo.Record(entry); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Recent(_ context.Context, limit int) ([]Entry, error) {
	return s.repo.Recent(limit)
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}

func (*noopRecorder) Record(context.Context, *Entry) error {
	return nil
}

func (*noopRecorder) Recent(context.Context, int) ([]Entry, error) {
	return nil, nil
}

func (*noopRecorder) Close() error {
	return nil
}

// Run records every snapshot received on states until the channel is
// closed or ctx is done. Record failures are logged and do not stop the
// loop.
func Run(ctx context.Context, rec Recorder, states <-chan scene.State, log logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}

			entry := &Entry{Timestamp: time.Now(), State: s}
			if err := rec.Record(ctx, entry); err != nil {
				log.Warn().Err(err).Uint64("seq", s.Seq).Msg("Failed to journal scene")
			}
		}
	}
}
