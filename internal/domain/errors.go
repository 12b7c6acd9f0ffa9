package domain

import "errors"

var (
	ErrAttemptNotFound = errors.New("import attempt not found")
	ErrNoSourceFiles   = errors.New("no source files match the given pattern")
)
