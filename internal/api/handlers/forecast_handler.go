package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/service"
)

type ForecastHandler struct {
	service *service.ForecastService
}

func NewForecastHandler(service *service.ForecastService) *ForecastHandler {
	return &ForecastHandler{service: service}
}

// GetSeries serves GET /api/v1/forecast. store_id and product_id are
// required; start and end optionally clip the series.
func (h *ForecastHandler) GetSeries(c *gin.Context) {
	key, ok := parseSkuKey(c)
	if !ok {
		return
	}

	from, ok := parseDateQuery(c, "start")
	if !ok {
		return
	}
	to, ok := parseDateQuery(c, "end")
	if !ok {
		return
	}

	rows, err := h.service.Series(c.Request.Context(), key, from, to)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"store_id":   key.StoreID,
		"product_id": key.ProductID,
		"rows":       rows,
	})
}

// GetAccuracy serves GET /api/v1/kpi/accuracy.
func (h *ForecastHandler) GetAccuracy(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Accuracy(c.Request.Context()))
}

func parseSkuKey(c *gin.Context) (domain.SkuKey, bool) {
	storeID := strings.TrimSpace(c.Query("store_id"))
	productID := strings.TrimSpace(c.Query("product_id"))
	if storeID == "" || productID == "" {
		respondError(c, http.StatusBadRequest, codeInvalidParameter, "store_id and product_id are required")
		return domain.SkuKey{}, false
	}
	return domain.SkuKey{StoreID: storeID, ProductID: productID}, true
}

func parseDateQuery(c *gin.Context, name string) (*time.Time, bool) {
	value := strings.TrimSpace(c.Query(name))
	if value == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidParameter, "invalid "+name+" date, want YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}
