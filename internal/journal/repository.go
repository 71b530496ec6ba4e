package journal

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/logger"
	"codeberg.org/mutker/scened/internal/scene"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	session       string
	mu            sync.Mutex
	buffer        []*Entry
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
	closeOnce     sync.Once
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}
	if log == nil {
		log = logger.Nop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, phaseError(ErrStorageInit, "create_directory "+cfg.DBPath, err)
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, phaseError(ErrStorageInit, "open_database", err)
	}

	if err := ValidateAndUpdateSchema(db, cfg.DBPath, log); err != nil {
		db.Close()
		return nil, phaseError(ErrStorageInit, "schema_version", err)
	}

	session := uuid.New().String()

	log.Info().
		Str("path", cfg.DBPath).
		Str("session", session).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("Journal repository initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		session:       session,
		buffer:        make([]*Entry, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(cfg.BatchTimeout)
		go repo.flusher()
	} else {
		close(repo.flushDoneChan)
	}

	return repo, nil
}

func (r *repository) Record(entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, entry)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

func (r *repository) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.flush()
}

// Recent returns up to limit entries, newest first. Buffered entries are
// flushed before reading.
func (r *repository) Recent(limit int) ([]Entry, error) {
	errFactory := errors.New()

	if err := r.Flush(); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(recentTransitionsSQL, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			ts                             int64
			session                        string
			seq                            uint64
			changed                        int
			app                            string
			level, plugged, status, health int
			temperature                    sql.NullInt64
			brightness                     int
		)
		if err := rows.Scan(&ts, &session, &seq, &changed, &app,
			&level, &plugged, &status, &health, &temperature, &brightness); err != nil {
			return nil, errFactory.Wrap(ErrQueryFailed, err)
		}

		entries = append(entries, Entry{
			Timestamp: time.Unix(ts, 0),
			Session:   session,
			State: scene.State{
				App: scene.AppID(app),
				Battery: scene.Battery{
					Level:       scene.FromRaw(level),
					Plugged:     scene.FromRaw(plugged),
					Status:      scene.FromRaw(status),
					Health:      scene.FromRaw(health),
					Temperature: fromStoredTemperature(temperature),
				},
				Brightness: scene.FromRaw(brightness),
				Seq:        seq,
				Changed:    scene.Factor(changed),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}

	return entries, nil
}

func (r *repository) Close() error {
	var err error
	r.closeOnce.Do(func() { err = r.close() })

	return err
}

func (r *repository) close() error {
	if r.flushTicker != nil {
		close(r.shutdownChan)
		r.flushTicker.Stop()
	}

	// Wait for the flusher to finish its final flush
	<-r.flushDoneChan

	if err := r.Flush(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to flush journal on close")
	}

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return phaseError(ErrStorageClose, "checkpoint_wal", err)
	}

	if err := r.db.Close(); err != nil {
		return phaseError(ErrStorageClose, "close_database", err)
	}

	r.logger.Info().Msg("Journal repository closed")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			_ = r.flush()
			r.mu.Unlock()
		case <-r.shutdownChan:
			r.mu.Lock()
			_ = r.flush()
			r.mu.Unlock()
			return
		}
	}
}

func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertTransitionSQL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, entry := range r.buffer {
		s := entry.State
		values := []any{
			entry.Timestamp.Unix(),
			r.session,
			int64(s.Seq),
			int64(s.Changed),
			string(s.App),
			int64(s.Battery.Level.Raw()),
			int64(s.Battery.Plugged.Raw()),
			int64(s.Battery.Status.Raw()),
			int64(s.Battery.Health.Raw()),
			toStoredTemperature(s.Battery.Temperature),
			int64(s.Brightness.Raw()),
		}

		if _, err := stmt.Exec(values...); err != nil {
			r.logger.Error().Err(err).Msg("Failed to execute insert")
			if err := tx.Rollback(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed scene transitions")
	r.buffer = r.buffer[:0]

	return nil
}

// Temperatures may legitimately be negative, so unknown is stored as NULL
// rather than -1.
func toStoredTemperature(v scene.Value) sql.NullInt64 {
	t, ok := v.Get()
	return sql.NullInt64{Int64: int64(t), Valid: ok}
}

func fromStoredTemperature(v sql.NullInt64) scene.Value {
	if !v.Valid {
		return scene.Value{}
	}

	return scene.Known(int(v.Int64))
}
