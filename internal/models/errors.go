package models

import "errors"

// Failure classes shared by the pipeline, the forecaster and the transport.
// Callers wrap these with context and classify with errors.Is.
var (
	ErrDataInsufficient   = errors.New("insufficient historical data")
	ErrDegenerateBaseline = errors.New("degenerate baseline: zero variance")
	ErrSourceUnavailable  = errors.New("upstream source unavailable")
	ErrFeatureShape       = errors.New("feature vector shape mismatch")
	ErrInferenceFailure   = errors.New("inference failure")
	ErrNotFound           = errors.New("not found")
	ErrStoreWrite         = errors.New("store write failure")
	ErrInvalidInput       = errors.New("invalid input")
)
