package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/service"
)

type KPIHandler struct {
	service *service.KPIService
}

func NewKPIHandler(service *service.KPIService) *KPIHandler {
	return &KPIHandler{service: service}
}

// GetReport serves GET /api/v1/kpi/:scope for products, categories and
// regions.
func (h *KPIHandler) GetReport(c *gin.Context) {
	scope, ok := domain.ParseKPIScope(c.Param("scope"))
	if !ok {
		respondError(c, http.StatusBadRequest, codeInvalidParameter, "unknown kpi scope: "+c.Param("scope"))
		return
	}

	rows, err := h.service.Report(c.Request.Context(), scope)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scope": scope,
		"rows":  rows,
	})
}
