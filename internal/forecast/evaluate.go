package forecast

import (
	"math"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// Accuracy reports forecast quality over rows that carried a real forecast.
// MAPE is a fraction (0.25 means 25%) and skips zero-demand rows, which would
// otherwise divide by zero.
type Accuracy struct {
	RMSE          float64 `json:"rmse"`
	MAPE          float64 `json:"mape"`
	RowsEvaluated int     `json:"rows_evaluated"`
}

// Evaluate computes RMSE and MAPE of provided forecasts against observed
// demand. Backfilled rows are excluded; they would score the fallback, not
// the forecast table.
func Evaluate(rows []domain.MergedRow) Accuracy {
	var (
		sqErrSum  float64
		pctErrSum float64
		evaluated int
		pctRows   int
	)
	for _, row := range rows {
		if row.Backfilled {
			continue
		}
		diff := float64(row.UnitsSold) - row.Forecast
		sqErrSum += diff * diff
		evaluated++

		if row.UnitsSold != 0 {
			pctErrSum += math.Abs(diff) / math.Abs(float64(row.UnitsSold))
			pctRows++
		}
	}

	acc := Accuracy{RowsEvaluated: evaluated}
	if evaluated > 0 {
		acc.RMSE = math.Sqrt(sqErrSum / float64(evaluated))
	}
	if pctRows > 0 {
		acc.MAPE = pctErrSum / float64(pctRows)
	}
	return acc
}
