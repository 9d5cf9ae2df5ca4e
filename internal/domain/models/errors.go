package models

import "errors"

// Error classes shared by the forecasting core and its collaborators.
// Callers wrap them with context and match with errors.Is.
var (
	ErrUpstreamData        = errors.New("upstream data error")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrUnknownTimeframe    = errors.New("unrecognized timeframe")
	ErrMalformedInput      = errors.New("malformed input")
	ErrComputation         = errors.New("computation error")
	ErrReferenceMissing    = errors.New("reference data unavailable")
)
