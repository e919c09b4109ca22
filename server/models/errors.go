package models

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrRecordNotFound is what callers outside this package match on,
	// so they don't couple to gorm's sentinel directly.
	ErrRecordNotFound = gorm.ErrRecordNotFound

	ErrDuplicateJob = errors.New("job with the given name already exists in queue")
)
