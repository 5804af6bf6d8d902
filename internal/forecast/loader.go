package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/stocksim/internal/domain"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}

// LoadCSV reads a forecast table (date, store_id, product_id, forecast).
// Extra columns such as category or region are ignored.
func LoadCSV(path string) ([]domain.ForecastPoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open forecast: %w", err)
	}
	defer file.Close()

	points, err := LoadCSVReader(file)
	if err != nil {
		return nil, fmt.Errorf("load forecast %s: %w", path, err)
	}
	return points, nil
}

// LoadCSVReader parses the forecast table from r.
func LoadCSVReader(r io.Reader) ([]domain.ForecastPoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIndex := func(names ...string) int {
		targets := make(map[string]struct{}, len(names))
		for _, name := range names {
			targets[normalizeColumnName(name)] = struct{}{}
		}
		for i, h := range header {
			if _, ok := targets[normalizeColumnName(h)]; ok {
				return i
			}
		}
		return -1
	}

	idxDate := colIndex("date", "ds")
	idxStore := colIndex("store_id", "store")
	idxProduct := colIndex("product_id", "product", "sku")
	idxForecast := colIndex("forecast", "yhat")

	required := []struct {
		name string
		idx  int
	}{
		{"date", idxDate},
		{"store_id", idxStore},
		{"product_id", idxProduct},
		{"forecast", idxForecast},
	}
	for _, col := range required {
		if col.idx < 0 {
			return nil, fmt.Errorf("missing required column: %s", col.name)
		}
	}

	points := make([]domain.ForecastPoint, 0, 1024)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		line++

		get := func(idx int) string {
			if idx < 0 || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		date, err := parseDate(get(idxDate))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		value, err := strconv.ParseFloat(get(idxForecast), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid forecast %q", line, get(idxForecast))
		}

		points = append(points, domain.ForecastPoint{
			Date:      date,
			StoreID:   get(idxStore),
			ProductID: get(idxProduct),
			Forecast:  value,
		})
	}
	return points, nil
}

func parseDate(val string) (time.Time, error) {
	if val == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, val); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", val)
}
