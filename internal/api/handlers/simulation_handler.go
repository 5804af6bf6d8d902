package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/policy"
	"github.com/andresuchdata/stocksim/internal/service"
)

type SimulationHandler struct {
	service *service.SimulationService
}

func NewSimulationHandler(service *service.SimulationService) *SimulationHandler {
	return &SimulationHandler{service: service}
}

// simulateRequest is the POST /api/v1/simulate body. Parameter fields are
// pointers so that an omitted field falls through to the preset or the
// configured defaults.
type simulateRequest struct {
	StoreID           string   `json:"store_id"`
	ProductID         string   `json:"product_id"`
	LeadTimeDays      *int     `json:"lead_time_days"`
	SafetyStockFactor *float64 `json:"safety_stock_factor"`
	HoldingCostRate   *float64 `json:"holding_cost_rate"`
	StockoutCostRate  *float64 `json:"stockout_cost_rate"`
	FixedOrderCost    *float64 `json:"fixed_order_cost"`
	InitialInventory  *int     `json:"initial_inventory"`
	Policy            string   `json:"policy"`
	Persist           bool     `json:"persist"`
	IncludeLedger     bool     `json:"include_ledger"`
}

// Simulate serves POST /api/v1/simulate.
func (h *SimulationHandler) Simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidInput, "invalid request body", err.Error())
		return
	}

	req.StoreID = strings.TrimSpace(req.StoreID)
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.StoreID == "" || req.ProductID == "" {
		respondError(c, http.StatusBadRequest, codeInvalidParameter, "store_id and product_id are required")
		return
	}

	result, err := h.service.Simulate(c.Request.Context(), service.SimulateRequest{
		Key:    domain.SkuKey{StoreID: req.StoreID, ProductID: req.ProductID},
		Policy: strings.TrimSpace(req.Policy),
		Overrides: policy.Overrides{
			LeadTimeDays:      req.LeadTimeDays,
			SafetyStockFactor: req.SafetyStockFactor,
			HoldingCostRate:   req.HoldingCostRate,
			StockoutCostRate:  req.StockoutCostRate,
			OrderCostFixed:    req.FixedOrderCost,
			InitialInventory:  req.InitialInventory,
		},
		Persist:       req.Persist,
		IncludeLedger: req.IncludeLedger,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListRuns serves GET /api/v1/runs.
func (h *SimulationHandler) ListRuns(c *gin.Context) {
	filter := domain.RunFilter{
		From: strings.TrimSpace(c.Query("from")),
		To:   strings.TrimSpace(c.Query("to")),
	}

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && page > 0 {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil && size > 0 {
		filter.PageSize = size
	}
	filter.StoreIDs = splitCSVQuery(c.Query("store_ids"))
	filter.ProductIDs = splitCSVQuery(c.Query("product_ids"))

	runs, total, err := h.service.ListRuns(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": runs,
		"total": total,
	})
}

// GetRun serves GET /api/v1/runs/:id where :id is the run UUID.
func (h *SimulationHandler) GetRun(c *gin.Context) {
	runUUID := strings.TrimSpace(c.Param("id"))
	if runUUID == "" {
		respondError(c, http.StatusBadRequest, codeInvalidParameter, "run id is required")
		return
	}

	run, records, err := h.service.GetRun(c.Request.Context(), runUUID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if run == nil {
		respondError(c, http.StatusNotFound, codeRunNotFound, "run not found: "+runUUID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":    run,
		"ledger": records,
	})
}

// ListPolicies serves GET /api/v1/policies.
func (h *SimulationHandler) ListPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"policies": h.service.Policies()})
}

func splitCSVQuery(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
