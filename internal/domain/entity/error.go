package entity

import (
	"errors"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUnknownTable  = errors.New("unknown entity table")
	ErrInvalidRecord = errors.New("invalid record")
	ErrMissingID     = errors.New("record id is missing")
)
