package simulation

import "errors"

// Failure kinds surfaced by Run. Callers match them with errors.Is; the
// wrapped message carries the offending field or index.
var (
	// ErrInvalidInput marks a malformed series: empty, unsorted, duplicate
	// dates, or negative demand/forecast values.
	ErrInvalidInput = errors.New("invalid simulation input")

	// ErrInvalidParameter marks out-of-range configuration.
	ErrInvalidParameter = errors.New("invalid simulation parameter")
)
