package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("candidate match not found")
	ErrInvalidLimit = errors.New("invalid list limit")
	ErrInvalidPair  = errors.New("ficha and hallazgo ids are required")
)
