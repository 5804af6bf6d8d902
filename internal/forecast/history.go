package forecast

import (
	"errors"
	"fmt"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// DefaultMinPoints is the minimum series length a SKU needs before its
// simulation results are considered meaningful.
const DefaultMinPoints = 30

// ErrInsufficientHistory marks a SKU whose series is too short. The batch
// pipeline treats it as a skip, not a failure.
var ErrInsufficientHistory = errors.New("insufficient history")

// CheckHistory gates a series on minimum length. A minPoints of zero or less
// falls back to DefaultMinPoints.
func CheckHistory(series domain.SkuTimeSeries, minPoints int) error {
	if minPoints <= 0 {
		minPoints = DefaultMinPoints
	}
	if len(series.Points) < minPoints {
		return fmt.Errorf("%w: %s has %d points, need %d",
			ErrInsufficientHistory, series.Key, len(series.Points), minPoints)
	}
	return nil
}
