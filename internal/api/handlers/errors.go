package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocksim/internal/service"
	"github.com/andresuchdata/stocksim/internal/simulation"
)

// Error codes returned in the response envelope.
const (
	codeInvalidParameter       = "INVALID_PARAMETER"
	codeInvalidInput           = "INVALID_INPUT"
	codeSKUNotFound            = "SKU_NOT_FOUND"
	codeRunNotFound            = "RUN_NOT_FOUND"
	codePersistenceUnavailable = "PERSISTENCE_UNAVAILABLE"
	codeInternal               = "INTERNAL"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details ...string) {
	e := apiError{Code: code, Message: message}
	if len(details) > 0 {
		e.Details = details[0]
	}
	c.JSON(status, gin.H{"error": e})
}

// respondServiceError maps service and simulation sentinels onto the HTTP
// error envelope. Anything unrecognized is a 500.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSKUNotFound):
		respondError(c, http.StatusNotFound, codeSKUNotFound, err.Error())
	case errors.Is(err, service.ErrUnknownPolicy):
		respondError(c, http.StatusBadRequest, codeInvalidParameter, err.Error())
	case errors.Is(err, service.ErrPersistenceUnavailable):
		respondError(c, http.StatusServiceUnavailable, codePersistenceUnavailable, err.Error())
	case errors.Is(err, simulation.ErrInvalidParameter):
		respondError(c, http.StatusBadRequest, codeInvalidParameter, err.Error())
	case errors.Is(err, simulation.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, codeInvalidInput, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, codeInternal, err.Error())
	}
}
