package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocksim/internal/service"
)

type DatasetHandler struct {
	service *service.DatasetService
}

func NewDatasetHandler(service *service.DatasetService) *DatasetHandler {
	return &DatasetHandler{service: service}
}

// Reload serves POST /api/v1/dataset/reload. It re-reads the source files
// and reports the new snapshot size.
func (h *DatasetHandler) Reload(c *gin.Context) {
	stats, err := h.service.Reload(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "reloaded",
		"dataset": stats,
	})
}

// Stats serves GET /api/v1/dataset.
func (h *DatasetHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats())
}
