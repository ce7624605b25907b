package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidInput   = errors.New("invalid scoring input")
	ErrInvalidWeights = errors.New("invalid weights")
)
