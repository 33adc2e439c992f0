package engine

import "errors"

var (
	// ErrInvalidParams is returned when Params fail validation.
	ErrInvalidParams = errors.New("invalid params")
	// ErrDimensionMismatch is returned when data and model disagree on the
	// number of features.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrForeignModel is returned when an engine is handed a model it did not
	// produce.
	ErrForeignModel = errors.New("model was produced by a different engine")
)
