package source

import "codeberg.org/mutker/scened/internal/errors"

const (
	ErrNoBattery       = errors.ErrorCode("source_no_battery")
	ErrNoBacklight     = errors.ErrorCode("source_no_backlight")
	ErrReadFailed      = errors.ErrSourceRead
	ErrInvalidInterval = errors.ErrInvalidInterval
)
