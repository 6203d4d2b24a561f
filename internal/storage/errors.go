package storage

import "errors"

var (
	ErrEmptyKey        = errors.New("storage: key is empty")
	ErrKeyTooLong      = errors.New("storage: key is too long")
	ErrEmptyValue      = errors.New("storage: value is empty")
	ErrInvalidFilename = errors.New("storage: invalid filename")
	ErrNotFound        = errors.New("storage: record not found")
	ErrPathInUse       = errors.New("storage: path is already open by another engine")
	ErrClosed          = errors.New("storage: engine is closed")
)
