package journal

import (
	"database/sql"

	"codeberg.org/mutker/scened/internal/errors"
	"codeberg.org/mutker/scened/internal/logger"
)

const (
	SchemaVersion = 1

	// Unknown values are stored as -1, except battery_temperature which
	// uses NULL.
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS transitions (
	       id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp           INTEGER NOT NULL,
	       session             TEXT    NOT NULL,
	       seq                 INTEGER NOT NULL CHECK (typeof(seq) = 'integer'),
	       changed             INTEGER NOT NULL CHECK (typeof(changed) = 'integer'),
	       app                 TEXT    NOT NULL,
	       battery_level       INTEGER NOT NULL CHECK (typeof(battery_level) = 'integer'),
	       battery_plugged     INTEGER NOT NULL CHECK (typeof(battery_plugged) = 'integer'),
	       battery_status      INTEGER NOT NULL CHECK (typeof(battery_status) = 'integer'),
	       battery_health      INTEGER NOT NULL CHECK (typeof(battery_health) = 'integer'),
	       battery_temperature INTEGER CHECK (battery_temperature IS NULL OR typeof(battery_temperature) = 'integer'),
	       brightness          INTEGER NOT NULL CHECK (typeof(brightness) = 'integer')
	   );`

	insertTransitionSQL = `
    INSERT INTO transitions (
        timestamp, session, seq, changed, app,
        battery_level, battery_plugged, battery_status, battery_health, battery_temperature,
        brightness
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	recentTransitionsSQL = `
    SELECT
        timestamp, session, seq, changed, app,
        battery_level, battery_plugged, battery_status, battery_health, battery_temperature,
        brightness
    FROM transitions
    ORDER BY id DESC
    LIMIT ?`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating journal database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return phaseError(ErrSchemaInitFailed, "create_tables", err)
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return phaseError(ErrSchemaInitFailed, "record_version", err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().Int("version", SchemaVersion).Msg("Journal schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for an empty
// database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, phaseError(ErrSchemaValidationFailed, "get_version", err)
	}

	return version, nil
}

func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, phaseError(ErrSchemaValidationFailed, "check_table_exists "+tableName, err)
	}

	return exists, nil
}
