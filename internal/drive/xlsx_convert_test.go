package drive

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestConvertXLSXToCSV(t *testing.T) {
	dir := t.TempDir()
	xlsxPath := filepath.Join(dir, "inventory.xlsx")
	csvPath := filepath.Join(dir, "inventory.csv")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	// Row 3 is left entirely empty and the last row has a trailing empty
	// cell, which excelize drops from Columns().
	cells := map[string]any{
		"A1": "Date", "B1": "Store ID", "C1": "Product ID", "D1": "Units Sold",
		"A2": "2024-03-01", "B2": "S001", "C2": "P001", "D2": 5,
		"A4": "2024-03-02", "B4": "S001", "C4": "P001",
	}
	for cell, val := range cells {
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			t.Fatalf("SetCellValue(%s): %v", cell, err)
		}
	}
	if err := f.SaveAs(xlsxPath); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	if err := convertXLSXToCSV(xlsxPath, csvPath); err != nil {
		t.Fatalf("convertXLSXToCSV: %v", err)
	}

	raw, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer raw.Close()

	got, err := csv.NewReader(raw).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{
		{"Date", "Store ID", "Product ID", "Units Sold"},
		{"2024-03-01", "S001", "P001", "5"},
		{"2024-03-02", "S001", "P001", ""},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("converted rows = %v, want %v", got, want)
	}
}

func TestConvertXLSXToCSVMissingFile(t *testing.T) {
	dir := t.TempDir()
	err := convertXLSXToCSV(filepath.Join(dir, "missing.xlsx"), filepath.Join(dir, "out.csv"))
	if err == nil {
		t.Fatal("expected error for missing xlsx")
	}
}
