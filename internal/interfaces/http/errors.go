package http

import (
	"errors"
	"net/http"
	"strings"

	"botrelay/internal/entities"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage drops the sentinel suffix so clients see "name is required" rather than the wrap chain
func publicMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{entities.ErrInvalidInput, entities.ErrUnauthorized, entities.ErrNotConfigured} {
		msg = strings.TrimSuffix(msg, ": "+sentinel.Error())
	}
	return msg
}

// writeError logs the failure with its context fields and writes {"error": ...}
func writeError(c *gin.Context, logger *zap.Logger, err error, fields ...zap.Field) {
	status := statusFor(err)
	fields = append(fields, zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Info("request rejected", fields...)
	}
	c.JSON(status, gin.H{"error": publicMessage(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
