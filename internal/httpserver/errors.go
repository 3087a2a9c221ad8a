package httpserver

import (
	"errors"
	"net/http"

	"heavenly-backend/internal/domain"
	customersvc "heavenly-backend/internal/service/customer"
	"github.com/gin-gonic/gin"
)

// respondError maps domain errors to HTTP statuses. Unclassified errors
// become opaque 500s so storage details never leak to clients.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidCoupon):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, customersvc.ErrInvalidCredentials), errors.Is(err, customersvc.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
