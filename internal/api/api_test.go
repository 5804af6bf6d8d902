package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/policy"
	"github.com/andresuchdata/stocksim/internal/service"
	"github.com/andresuchdata/stocksim/internal/simulation"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func writeDataset(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("Date,Store ID,Product ID,Category,Region,Inventory Level,Units Sold,Price,Holiday/Promotion\n")
	inv := 50
	for i := 0; i < 10; i++ {
		date := time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		fmt.Fprintf(&b, "%s,S001,P0001,Groceries,North,%d,5,9.99,0\n", date, inv)
		inv -= 5
	}

	path := filepath.Join(dir, "inventory.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	data, err := service.NewDatasetService(config.DatasetConfig{DatasetPath: writeDataset(t, t.TempDir())}, nil, nil)
	if err != nil {
		t.Fatalf("NewDatasetService: %v", err)
	}

	presets := map[string]policy.Preset{
		"default": {Name: "default", Params: simulation.DefaultParams()},
	}

	return NewRouter(&Services{
		Dataset:    data,
		Forecast:   service.NewForecastService(data),
		Simulation: service.NewSimulationService(data, presets, simulation.DefaultParams(), nil, nil),
		KPI:        service.NewKPIService(data, nil),
	}, nil)
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	body := decodeBody(t, w)
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error envelope in %q", w.Body.String())
	}
	code, _ := e["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Errorf("body = %v, want status ok", body)
	}
}

func TestForecastEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/forecast?store_id=S001&product_id=P0001", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	rows, ok := body["rows"].([]any)
	if !ok || len(rows) != 10 {
		t.Errorf("rows = %v, want 10 entries", body["rows"])
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/forecast?store_id=S001", "")
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "INVALID_PARAMETER" {
		t.Errorf("missing product_id: status %d code %s", w.Code, errorCode(t, w))
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/forecast?store_id=S001&product_id=P0001&start=notadate", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad start date: status = %d, want 400", w.Code)
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/forecast?store_id=S009&product_id=P0001", "")
	if w.Code != http.StatusNotFound || errorCode(t, w) != "SKU_NOT_FOUND" {
		t.Errorf("absent SKU: status %d code %s", w.Code, errorCode(t, w))
	}
}

func TestSimulateEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/simulate",
		`{"store_id":"S001","product_id":"P0001"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if got := body["orders_placed"].(float64); got != 1 {
		t.Errorf("orders_placed = %v, want 1", got)
	}
	if got := body["total_cost"].(float64); got < 33.69 || got > 33.71 {
		t.Errorf("total_cost = %v, want ~33.7", got)
	}
	if _, ok := body["ledger"]; ok {
		t.Error("ledger present without include_ledger")
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/simulate",
		`{"store_id":"S001","product_id":"P0001","include_ledger":true}`)
	body = decodeBody(t, w)
	ledger, ok := body["ledger"].([]any)
	if !ok || len(ledger) != 10 {
		t.Errorf("ledger = %v, want 10 entries", body["ledger"])
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/simulate",
		`{"store_id":"S001","product_id":"P0001","safety_stock_factor":-1}`)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "INVALID_PARAMETER" {
		t.Errorf("invalid param: status %d code %s", w.Code, errorCode(t, w))
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/simulate",
		`{"store_id":"S009","product_id":"P0001"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("absent SKU: status = %d, want 404", w.Code)
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/simulate",
		`{"store_id":"S001","product_id":"P0001","persist":true}`)
	if w.Code != http.StatusServiceUnavailable || errorCode(t, w) != "PERSISTENCE_UNAVAILABLE" {
		t.Errorf("persist without db: status %d code %s", w.Code, errorCode(t, w))
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/simulate", `{"store_id":`)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "INVALID_INPUT" {
		t.Errorf("malformed body: status %d code %s", w.Code, errorCode(t, w))
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/simulate",
		`{"store_id":"S001","product_id":"P0001","policy":"nope"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown policy: status = %d, want 400", w.Code)
	}
}

func TestKPIEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/kpi/products", "")
	if w.Code != http.StatusOK {
		t.Fatalf("kpi/products status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["scope"] != "product" {
		t.Errorf("scope = %v, want product", body["scope"])
	}
	rows, ok := body["rows"].([]any)
	if !ok || len(rows) != 1 {
		t.Errorf("rows = %v, want 1 entry", body["rows"])
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/kpi/regions", "")
	if w.Code != http.StatusOK {
		t.Errorf("kpi/regions status = %d", w.Code)
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/kpi/velocity", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown scope status = %d, want 400", w.Code)
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/kpi/accuracy", "")
	if w.Code != http.StatusOK {
		t.Fatalf("kpi/accuracy status = %d", w.Code)
	}
	acc := decodeBody(t, w)
	if got := acc["rows_evaluated"].(float64); got != 0 {
		t.Errorf("rows_evaluated = %v, want 0 without a forecast table", got)
	}
}

func TestRunsEndpointsWithoutDB(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/runs", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("runs status = %d, want 503", w.Code)
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/runs/some-uuid", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("runs/:id status = %d, want 503", w.Code)
	}
}

func TestDatasetEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/dataset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("dataset status = %d", w.Code)
	}
	stats := decodeBody(t, w)
	if got := stats["rows"].(float64); got != 10 {
		t.Errorf("rows = %v, want 10", got)
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/dataset/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != "reloaded" {
		t.Errorf("reload body = %v", body)
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/policies", "")
	if w.Code != http.StatusOK {
		t.Fatalf("policies status = %d", w.Code)
	}
	body = decodeBody(t, w)
	policies, ok := body["policies"].([]any)
	if !ok || len(policies) != 1 || policies[0] != "default" {
		t.Errorf("policies = %v, want [default]", body["policies"])
	}
}
