package kpi

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// FileName returns the artifact name for a scope, e.g.
// inventory_kpi_product.csv.
func FileName(scope domain.KPIScope) string {
	return fmt.Sprintf("inventory_kpi_%s.csv", scope)
}

// WriteCSV writes one scope's KPI rows. The leading columns depend on the
// scope; metric columns are shared.
func WriteCSV(path string, scope domain.KPIScope, rows []domain.KPIRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	metrics := []string{"stockout_rate", "overstock_rate", "total_sales", "total_forecast", "avg_inventory"}
	var header []string
	switch scope {
	case domain.ScopeCategory:
		header = append([]string{"category"}, metrics...)
	case domain.ScopeRegion:
		header = append([]string{"region"}, metrics...)
	default:
		header = append([]string{"store_id", "product_id"}, metrics...)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		var record []string
		switch scope {
		case domain.ScopeCategory:
			record = []string{r.Category}
		case domain.ScopeRegion:
			record = []string{r.Region}
		default:
			record = []string{r.StoreID, r.ProductID}
		}
		record = append(record,
			fmtFloat(r.StockoutRate),
			fmtFloat(r.OverstockRate),
			strconv.Itoa(r.TotalSales),
			fmtFloat(r.TotalForecast),
			fmtFloat(r.AvgInventory),
		)
		if err := w.Write(record); err != nil {
			return err
		}
	}

	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
