package dataset

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

// Canonical column aliases. Matching is done on normalized names (lowercase,
// separators stripped), so "Store ID", "store_id" and "storeid" all resolve
// to the same column.
var columnAliases = map[string][]string{
	"date":            {"date", "day", "timestamp"},
	"store_id":        {"store_id", "store id", "store", "storeid"},
	"product_id":      {"product_id", "product id", "product", "sku"},
	"units_sold":      {"units_sold", "units sold", "units", "sales", "quantity"},
	"inventory_level": {"inventory_level", "inventory level", "inventory", "stock", "stock_level"},
	"price":           {"price", "unit_price", "unit price", "sale_price"},
	"is_promo":        {"promo", "promotion", "is_promo", "on_promo", "holiday/promotion", "holiday_promotion"},
	"is_holiday":      {"holiday", "is_holiday", "holiday_flag"},
	"category":        {"category", "product_category"},
	"region":          {"region", "store_region"},
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}

// Load reads the canonical inventory CSV at path and returns an indexed
// Dataset. Unknown columns are ignored; category and region default to
// UNKNOWN when absent.
func Load(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	ds, err := LoadReader(file)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	return ds, nil
}

// LoadReader parses the canonical CSV from r. Rows with unparseable dates or
// numbers fail the whole load with the offending line reported.
func LoadReader(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIndex := func(canonical string) int {
		targets := make(map[string]struct{})
		for _, alias := range columnAliases[canonical] {
			targets[normalizeColumnName(alias)] = struct{}{}
		}
		for i, h := range header {
			if _, ok := targets[normalizeColumnName(h)]; ok {
				return i
			}
		}
		return -1
	}

	idxDate := colIndex("date")
	idxStore := colIndex("store_id")
	idxProduct := colIndex("product_id")
	idxUnits := colIndex("units_sold")
	idxInventory := colIndex("inventory_level")
	idxPrice := colIndex("price")
	idxPromo := colIndex("is_promo")
	idxHoliday := colIndex("is_holiday")
	idxCategory := colIndex("category")
	idxRegion := colIndex("region")

	required := []struct {
		name string
		idx  int
	}{
		{"date", idxDate},
		{"store_id", idxStore},
		{"product_id", idxProduct},
		{"units_sold", idxUnits},
		{"inventory_level", idxInventory},
	}
	for _, col := range required {
		if col.idx < 0 {
			return nil, fmt.Errorf("missing required column: %s", col.name)
		}
	}

	rows := make([]domain.Observation, 0, 1024)
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

		getInt := func(idx int, name string) (int, error) {
			val := get(idx)
			if val == "" {
				return 0, nil
			}
			val = strings.ReplaceAll(val, ",", "")
			// Accept float strings like "12.0".
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: invalid %s %q", line, name, val)
			}
			return int(f), nil
		}

		getFloat := func(idx int, name string) (float64, error) {
			val := get(idx)
			if val == "" {
				return 0, nil
			}
			val = strings.ReplaceAll(val, ",", "")
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: invalid %s %q", line, name, val)
			}
			return f, nil
		}

		getBool := func(idx int) bool {
			val := get(idx)
			return val == "1" || strings.EqualFold(val, "true")
		}

		date, err := parseDate(get(idxDate))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		unitsSold, err := getInt(idxUnits, "units_sold")
		if err != nil {
			return nil, err
		}
		inventory, err := getInt(idxInventory, "inventory_level")
		if err != nil {
			return nil, err
		}
		price, err := getFloat(idxPrice, "price")
		if err != nil {
			return nil, err
		}

		category := get(idxCategory)
		if category == "" {
			category = "UNKNOWN"
		}
		region := get(idxRegion)
		if region == "" {
			region = "UNKNOWN"
		}

		rows = append(rows, domain.Observation{
			Date:           date,
			StoreID:        get(idxStore),
			ProductID:      get(idxProduct),
			Category:       category,
			Region:         region,
			UnitsSold:      unitsSold,
			InventoryLevel: inventory,
			Price:          price,
			IsPromo:        getBool(idxPromo),
			IsHoliday:      getBool(idxHoliday),
			StockoutFlag:   unitsSold > inventory,
		})
	}

	return New(rows), nil
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
