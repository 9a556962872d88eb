package tiling

import "errors"

var (
	// ErrInvalidMaxK is returned when the pattern budget is negative.
	ErrInvalidMaxK = errors.New("tiling: max patterns must not be negative")

	// ErrInvalidNoise is returned when a noise tolerance is outside [0,1).
	ErrInvalidNoise = errors.New("tiling: noise tolerance must be in [0,1)")

	// ErrUnknownCostModel is returned by NewCostModel for an unregistered name.
	ErrUnknownCostModel = errors.New("tiling: unknown cost model")
)
