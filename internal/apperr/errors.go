package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrFileMissing       = errors.New("file missing")
	ErrConflict          = errors.New("conflict")
	ErrDuplicateIdentity = errors.New("duplicate stable identity")
)
