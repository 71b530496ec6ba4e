package journal

import "codeberg.org/mutker/scened/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("journal_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("journal_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("journal_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("journal_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("journal_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed
	ErrQueryFailed  = errors.ErrorCode("journal_query_failed")

	// Recording Errors
	ErrRecordFailed  = errors.ErrorCode("journal_record_failed")
	ErrInvalidEntry  = errors.ErrorCode("journal_invalid_entry")
	ErrClosed        = errors.ErrorCode("journal_closed")
	ErrRecordTimeout = errors.ErrTimeout
)

// phaseError wraps err with code and records the step that failed.
func phaseError(code errors.ErrorCode, phase string, err error) errors.Error {
	return errors.New().Wrap(code, err).WithData(phase)
}
