package service

import (
	"context"
	"time"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/forecast"
)

// ForecastService answers forecast queries from the merged dataset snapshot.
type ForecastService struct {
	data *DatasetService
}

func NewForecastService(data *DatasetService) *ForecastService {
	return &ForecastService{data: data}
}

// Series returns the demand/forecast pairs for one SKU, date ascending,
// optionally clipped to [from, to]. A nil bound leaves that side open.
func (s *ForecastService) Series(ctx context.Context, key domain.SkuKey, from, to *time.Time) ([]domain.ForecastRow, error) {
	rows, ok := s.data.MergedRowsFor(key)
	if !ok {
		return nil, ErrSKUNotFound
	}

	out := make([]domain.ForecastRow, 0, len(rows))
	for _, row := range rows {
		if from != nil && row.Date.Before(*from) {
			continue
		}
		if to != nil && row.Date.After(*to) {
			continue
		}
		out = append(out, domain.ForecastRow{
			Date:      row.Date,
			UnitsSold: row.UnitsSold,
			Forecast:  row.Forecast,
		})
	}
	return out, nil
}

// Accuracy evaluates the loaded forecasts against observed demand. Backfilled
// rows are excluded; with no forecast table loaded every row is backfilled
// and the result is empty.
func (s *ForecastService) Accuracy(ctx context.Context) forecast.Accuracy {
	return forecast.Evaluate(s.data.MergedRows())
}
