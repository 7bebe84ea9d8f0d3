package ml

import "errors"

var (
	ErrEmptyInput         = errors.New("input is empty")
	ErrDegenerateVariance = errors.New("mileage has zero variance")
	ErrModelNotFound      = errors.New("model artifact not found")
	ErrModelCorrupt       = errors.New("model artifact is corrupt")
	ErrInvalidQuery       = errors.New("invalid mileage")
	ErrNonFinite          = errors.New("non-finite result")
	ErrDiverged           = errors.New("training diverged")
	ErrInvalidConfig      = errors.New("invalid training config")
)
