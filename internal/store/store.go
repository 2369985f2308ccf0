package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("bracket was changed by someone else")
)

func nowUTC() time.Time {
	return time.Now().UTC()
}
